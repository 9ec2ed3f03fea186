package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Valid(t *testing.T) {
	raw := []byte(`{
		"title": "Dance Night",
		"start": "2025-08-11T22:00:00-07:00",
		"end": "2025-08-12T01:00:00-07:00",
		"location": "The Hall, Victoria, British Columbia, Canada",
		"capacity": 120,
		"description": "A night of dancing.",
		"notes": "19+",
		"extra": "ignored"
	}`)

	event, err := Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "Dance Night", event.Title)
	assert.Equal(t, "2025-08-11T22:00:00-07:00", event.Start)
	require.NotNil(t, event.End)
	assert.Equal(t, "2025-08-12T01:00:00-07:00", *event.End)
	assert.Equal(t, "The Hall, Victoria, British Columbia, Canada", *event.Location)
	assert.Equal(t, 120, *event.Capacity)
	assert.Equal(t, "A night of dancing.", *event.Description)
	assert.Equal(t, "19+", *event.Notes)
}

func TestValidate_OptionalFieldsAbsentOrNull(t *testing.T) {
	raw := []byte(`{"title":"Dance Night","start":"2025-08-11T17:00:00","end":null,"capacity":null,"notes":null}`)

	event, err := Validate(raw)
	require.NoError(t, err)
	assert.Nil(t, event.End)
	assert.Nil(t, event.Location)
	assert.Nil(t, event.Capacity)
	assert.Nil(t, event.Description)
	assert.Nil(t, event.Notes)
}

func TestValidate_EmptyStringIsDistinctFromAbsent(t *testing.T) {
	event, err := Validate([]byte(`{"title":"T","start":"2025-08-11T17:00:00Z","location":""}`))
	require.NoError(t, err)
	require.NotNil(t, event.Location)
	assert.Equal(t, "", *event.Location)
}

func TestValidate_EmptyEndMeansNoEnd(t *testing.T) {
	event, err := Validate([]byte(`{"title":"T","start":"2025-08-11T17:00:00Z","end":"  "}`))
	require.NoError(t, err)
	assert.Nil(t, event.End)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		fields []string
	}{
		{
			name:   "missing title",
			raw:    `{"start": "2025-08-11T17:00:00-07:00"}`,
			fields: []string{"title"},
		},
		{
			name:   "missing start",
			raw:    `{"title": "Dance Night"}`,
			fields: []string{"start"},
		},
		{
			name:   "both required fields missing",
			raw:    `{}`,
			fields: []string{"title", "start"},
		},
		{
			name:   "null title",
			raw:    `{"title": null, "start": "2025-08-11T17:00:00Z"}`,
			fields: []string{"title"},
		},
		{
			name:   "blank title",
			raw:    `{"title": "   ", "start": "2025-08-11T17:00:00Z"}`,
			fields: []string{"title"},
		},
		{
			name:   "title not a string",
			raw:    `{"title": 42, "start": "2025-08-11T17:00:00Z"}`,
			fields: []string{"title"},
		},
		{
			name:   "start not a date-time",
			raw:    `{"title": "T", "start": "next friday"}`,
			fields: []string{"start"},
		},
		{
			name:   "start is a date without a time",
			raw:    `{"title": "T", "start": "2025-08-11"}`,
			fields: []string{"start"},
		},
		{
			name:   "end is a date without a time",
			raw:    `{"title": "T", "start": "2025-08-11T17:00:00Z", "end": "2025-08-12"}`,
			fields: []string{"end"},
		},
		{
			name:   "end not a string",
			raw:    `{"title": "T", "start": "2025-08-11T17:00:00Z", "end": 1900}`,
			fields: []string{"end"},
		},
		{
			name:   "end not a date-time",
			raw:    `{"title": "T", "start": "2025-08-11T17:00:00Z", "end": "late"}`,
			fields: []string{"end"},
		},
		{
			name:   "negative capacity",
			raw:    `{"title": "T", "start": "2025-08-11T17:00:00Z", "capacity": -1}`,
			fields: []string{"capacity"},
		},
		{
			name:   "fractional capacity",
			raw:    `{"title": "T", "start": "2025-08-11T17:00:00Z", "capacity": 2.5}`,
			fields: []string{"capacity"},
		},
		{
			name:   "capacity as words",
			raw:    `{"title": "T", "start": "2025-08-11T17:00:00Z", "capacity": "fifty"}`,
			fields: []string{"capacity"},
		},
		{
			name:   "location not a string",
			raw:    `{"title": "T", "start": "2025-08-11T17:00:00Z", "location": ["a"]}`,
			fields: []string{"location"},
		},
		{
			name:   "top-level array",
			raw:    `[{"title": "T", "start": "2025-08-11T17:00:00Z"}]`,
			fields: []string{"$"},
		},
		{
			name:   "top-level string",
			raw:    `"Dance Night"`,
			fields: []string{"$"},
		},
		{
			name:   "not JSON",
			raw:    `Sure! Here is the event:`,
			fields: []string{"$"},
		},
		{
			name:   "two objects",
			raw:    `{"title": "A", "start": "2025-08-11T17:00:00Z"} {"title": "B"}`,
			fields: []string{"$"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := Validate([]byte(tt.raw))
			assert.Nil(t, event)

			var serr *SchemaError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, tt.fields, serr.Fields())
			for _, f := range tt.fields {
				assert.Contains(t, serr.Error(), f+":")
			}
		})
	}
}
