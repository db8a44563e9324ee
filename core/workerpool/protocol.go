package workerpool

import "encoding/json"

// Request type for media extraction jobs.
const TypeProcessPhoto = "process-photo"

// TypeLog marks an out-of-band log message forwarded by a worker while a
// job is running. Log messages carry the id of the request they belong to.
const TypeLog = "log"

// Request travels host -> worker as one JSON line on the worker's stdin.
type Request struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message travels worker -> host as one JSON line on the worker's stdout.
// It is either the response to an in-flight request (Type echoes the
// request type) or a log message (Type == TypeLog).
type Message struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Success bool            `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
	Level   string          `json:"level,omitempty"`
	Text    string          `json:"message,omitempty"`
}

// RemoteError is a job failure reported by a live worker. The worker itself
// is healthy and stays in the pool; only the one job failed.
type RemoteError struct {
	Msg string
}

func (e *RemoteError) Error() string { return e.Msg }
