package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"
)

// APIVersion is reported in every successful envelope.
const APIVersion = "v1"

// Envelope is the body of every API response:
//
//	{"success": true, "data": ..., "meta": {...}}
//	{"success": false, "error": {"code": ..., "message": ...}, "meta": {...}}
type Envelope struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *ErrorBody    `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// ErrorBody carries a stable machine code and a human message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type ResponseMeta struct {
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version,omitempty"`
	TotalCount int       `json:"total_count,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	WriteJSONWithMeta(w, status, data, nil, "")
}

// WriteJSONWithMeta marks the envelope successful for 2xx statuses.
func WriteJSONWithMeta(w http.ResponseWriter, status int, data any, meta *ResponseMeta, requestID string) {
	m := ResponseMeta{}
	if meta != nil {
		m = *meta
	}
	m.Timestamp, m.Version = time.Now().UTC(), APIVersion

	send(w, status, Envelope{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Meta:      &m,
		RequestID: requestID,
	})
}

func WriteJSONError(w http.ResponseWriter, status int, code, message string) {
	WriteJSONErrorWithDetails(w, status, code, message, "")
}

func WriteJSONErrorWithDetails(w http.ResponseWriter, status int, code, message, details string) {
	send(w, status, Envelope{
		Error: &ErrorBody{Code: code, Message: message, Details: details},
		Meta:  &ResponseMeta{Timestamp: time.Now().UTC()},
	})
}

// send encodes before writing the header so an unencodable payload turns
// into a 500 instead of a truncated body.
func send(w http.ResponseWriter, status int, env Envelope) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(env); err != nil {
		buf.Reset()
		status = http.StatusInternalServerError
		_ = json.NewEncoder(&buf).Encode(Envelope{
			Error: &ErrorBody{Code: "encoding_failed", Message: "Response could not be encoded"},
		})
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
