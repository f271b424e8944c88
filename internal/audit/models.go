package audit

import "time"

// EventType names what happened to a submission.
type EventType string

const (
	EventApplicationSubmitted EventType = "application_submitted"
	EventApplicationRejected  EventType = "application_rejected"
)

// Event records the outcome of one onboarding request. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	RequestID     string    `json:"request_id,omitempty"`
	ClientIP      string    `json:"client_ip,omitempty"`
	UserAgent     string    `json:"user_agent,omitempty"`
	Browser       string    `json:"browser,omitempty"`
	OS            string    `json:"os,omitempty"`
	Mobile        bool      `json:"mobile,omitempty"`
	ApplicationID int64     `json:"application_id,omitempty"`
	SubjectCN     string    `json:"subject_cn,omitempty"`
	IssuerCN      string    `json:"issuer_cn,omitempty"`
	SerialNumber  string    `json:"serial_number,omitempty"`
	// RejectionKind is the error code or certificate failure kind.
	RejectionKind string `json:"rejection_kind,omitempty"`
	Reason        string `json:"reason,omitempty"`
}
