package extractor

import (
	"encoding/json"
	"strings"
	"time"
)

// EventSchema is the JSON Schema sent to the oracle with every request.
var EventSchema = json.RawMessage(`{"type":"object","properties":{` +
	`"title":{"type":"string"},` +
	`"start":{"type":"string","format":"date-time"},` +
	`"end":{"type":["string","null"],"format":"date-time"},` +
	`"location":{"type":["string","null"]},` +
	`"capacity":{"type":["integer","null"],"minimum":0},` +
	`"description":{"type":["string","null"],"maxLength":140},` +
	`"notes":{"type":["string","null"],"maxLength":280}` +
	`},"required":["title","start"]}`)

// Instructions renders the system prompt for one extraction.
func Instructions(tz string, referenceDate time.Time, defaultLocation string) string {
	ref := referenceDate.Format("2006-01-02")

	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteString("\n")
	}

	line("Return ONLY one JSON object matching the schema. If a field is unknown, use null.")
	line("Timezone: assume " + tz + " when a time has no offset, and include the UTC offset in every ISO-8601 date-time you return.")
	line("Reference date: " + ref + ". All date decisions MUST be made relative to this date.")
	line("If the announcement gives a month and day but no year, assume the year of the reference date.")
	line("If several dates or times are mentioned, return the one that is NEXT or UPCOMING relative to the reference date. NEVER return a date in the past; reinterpret any ambiguous or past-dated mention as its next future occurrence.")
	line("For recurring events or when the date is missing, infer the next future date and time from context (for example a weekday plus a time).")
	line("Title: use the explicit event name; if several appear, pick the one nearest the 'When:' line. Do not invent a title. Drop usernames, social media handles, hashtags and location tags.")
	line("Times: extract both start and end when a time range appears, including informal forms such as '5:30 PM – 6:15 PM', '5 - 7pm', '5–7 PM' or 'between 5 and 7 PM'. Do not ignore a range because of punctuation, formatting or spacing. If only one time is present, set end to null.")
	line("Treat a range as same-day unless there is clear evidence of an overnight event (for example an end after midnight).")
	line("If several times or ranges appear, prefer the one that includes both start and end, is more specific, and lies in the future relative to the reference date.")
	line("Location: prefer 'venue name, address, city, province, country'. Always include at least a venue or hosting group name, never only a city. If no city is mentioned, append '" + defaultLocation + "'. If no venue is mentioned, use 'hosting group name, " + defaultLocation + "'.")
	line("Capacity: convert written numbers to integers when unambiguous, otherwise null.")
	line("Description: exactly one sentence of at most 140 characters summarizing the main activities and vibe (dance party, workshop, social, and so on). Do not repeat the date, time or venue.")
	line("Notes: at most 280 characters with extra details that did not fit the description, such as dress code, accessibility, theme, tickets, performances or safety policies (for example 'Consent required' or '19+').")
	line("Deduplicate repeated sentences and skip marketing fluff.")

	return b.String()
}
