package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name   string
		status int
		data   any
	}{
		{"map", http.StatusOK, map[string]string{"message": "success"}},
		{"struct", http.StatusCreated, struct{ ID int64 }{7}},
		{"slice", http.StatusOK, []string{"one", "two"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteJSON(w, tt.status, tt.data)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var result any
			assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		})
	}
}

func TestWriteJSON_InvalidData(t *testing.T) {
	w := httptest.NewRecorder()
	assert.NotPanics(t, func() { WriteJSON(w, http.StatusOK, make(chan int)) })
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWriteErrorResponse(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorResponse(w, http.StatusUnprocessableEntity, ErrorResponse{Error: "bad", Kind: "schema", Fields: []string{"title"}})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"error":"bad","kind":"schema","fields":["title"]}`, w.Body.String())

	w = httptest.NewRecorder()
	WriteError(w, http.StatusNotFound, "missing")
	assert.JSONEq(t, `{"error":"missing"}`, w.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Text string `json:"text"`
	}

	tests := []struct {
		name    string
		payload string
		want    string
		wantErr string
	}{
		{"valid", `{"text":"hello"}`, "hello", ""},
		{"unknown fields ignored", `{"text":"hi","extra":1}`, "hi", ""},
		{"empty", ``, "", "request body is empty"},
		{"malformed", `{"text":`, "", "invalid request body"},
		{"trailing", `{"text":"a"} {"text":"b"}`, "", "trailing data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.payload))
			w := httptest.NewRecorder()

			var got body
			err := DecodeJSON(w, r, &got)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Text)
		})
	}
}

func TestParseIntParam(t *testing.T) {
	assert.Equal(t, 5, ParseIntParam("", 5))
	assert.Equal(t, 12, ParseIntParam("12", 5))
	assert.Equal(t, -1, ParseIntParam("-1", 5))
	assert.Equal(t, 5, ParseIntParam("abc", 5))
}

func TestParseListParam(t *testing.T) {
	assert.Nil(t, ParseListParam(""))
	assert.Nil(t, ParseListParam("  "))
	assert.Equal(t, []string{"id", "title", "start_ts"}, ParseListParam("id, title,,start_ts "))
}
