package model

// Event records a committed pool operation.
type Event struct {
	Height     uint64            `json:"height"`
	Time       uint64            `json:"time"`
	Action     string            `json:"action"`
	Sender     string            `json:"sender"`
	Attributes map[string]string `json:"attributes,omitempty"`
	RecordedAt string            `json:"recorded_at"`
}
