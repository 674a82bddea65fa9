package metrics

import (
	"time"
)

// RecordStage emits one stage Lambda invocation: latency, response size,
// and a failure count when err is non-nil.
func RecordStage(stage, model, status string, d time.Duration, responseChars int, err error) {
	r := New(Namespace).
		Dimension("Stage", stage).
		Metric("StageLatencyMs", float64(d.Milliseconds()), UnitMilliseconds).
		Property("model", model)
	if err != nil {
		r.Count("StageErrors").Property("error", err.Error())
	} else {
		r.Metric("ResponseChars", float64(responseChars), UnitCount).
			Property("status", status)
		if status != "completed" {
			r.Count("UnstructuredResponses")
		}
	}
	r.Flush()
}

// RecordSubmission emits one submission request with its envelope size
// and the HTTP status it was answered with.
func RecordSubmission(envelopeBytes, status int) {
	r := New(Namespace).
		Dimension("Operation", "submit").
		Metric("EnvelopeBytes", float64(envelopeBytes), UnitBytes).
		Property("status", status)
	switch {
	case status == 413:
		r.Count("OversizedSubmissions")
	case status >= 400:
		r.Count("RejectedSubmissions")
	default:
		r.Count("Submissions")
	}
	r.Flush()
}

// RecordStatusQuery emits one status lookup and the state it returned.
func RecordStatusQuery(state string, d time.Duration) {
	New(Namespace).
		Dimension("Operation", "status").
		Metric("StatusLatencyMs", float64(d.Milliseconds()), UnitMilliseconds).
		Count("StatusQueries").
		Property("state", state).
		Flush()
}
