package messagequeue

import "time"

// LoanPayload is the schema for circulation.loan.* messages.
type LoanPayload struct {
	LoanID     string    `json:"loan_id"`
	ItemID     string    `json:"item_id"`
	UserID     string    `json:"user_id"`
	Action     string    `json:"action"`
	DueDate    time.Time `json:"due_date"`
	Renewals   int       `json:"renewal_count"`
	OperatorID string    `json:"operator_id,omitempty"`
}

// RequestPayload is the schema for circulation.request.created messages.
type RequestPayload struct {
	RequestID   string `json:"request_id"`
	RequesterID string `json:"requester_id"`
	ItemID      string `json:"item_id,omitempty"`
	InstanceID  string `json:"instance_id"`
	Type        string `json:"request_type"`
	Level       string `json:"request_level"`
	Position    int    `json:"position"`
}

// RequestMovedPayload is the schema for circulation.request.moved messages.
type RequestMovedPayload struct {
	RequestID         string `json:"request_id"`
	SourceItemID      string `json:"source_item_id"`
	DestinationItemID string `json:"destination_item_id"`
	Type              string `json:"request_type"`
	Position          int    `json:"position"`
}

// QueueReorderedPayload is the schema for circulation.queue.reordered messages.
type QueueReorderedPayload struct {
	Scope   string   `json:"scope"`
	Key     string   `json:"key"`
	Order   []string `json:"order"`
	Version int64    `json:"version"`
}

// OverrideAppliedPayload is the schema for circulation.override.applied messages.
type OverrideAppliedPayload struct {
	Block      string    `json:"block"`
	Permission string    `json:"permission"`
	Operation  string    `json:"operation"`
	Comment    string    `json:"comment,omitempty"`
	OperatorID string    `json:"operator_id,omitempty"`
	SubjectID  string    `json:"subject_id,omitempty"`
	At         time.Time `json:"at"`
}

// PoliciesImportedPayload is the schema for circulation.policies.imported
// messages. The tenant travels in the message headers.
type PoliciesImportedPayload struct {
	Revision        int64 `json:"revision"`
	LoanPolicies    int   `json:"loan_policies"`
	RequestPolicies int   `json:"request_policies"`
	Rules           int   `json:"rules"`
}
