package domain

import "time"

// BatchKind distinguishes create and update batches.
type BatchKind string

const (
	BatchKindCreate BatchKind = "create"
	BatchKindUpdate BatchKind = "update"
)

// CreateOperation is one pending insert in a create batch.
// String values in Payload may reference earlier operations with ${name}.
type CreateOperation struct {
	Target  string         `json:"target"`
	Payload map[string]any `json:"payload"`
	SaveAs  string         `json:"save_as,omitempty"`
}

// UpdateOperation is one pending write against an existing record.
type UpdateOperation struct {
	Target   string         `json:"target"`
	RecordID string         `json:"record_id"`
	Payload  map[string]any `json:"payload"`
}

// OperationError describes a failed operation inside a batch.
type OperationError struct {
	OperationIndex int    `json:"operation_index"`
	Target         string `json:"target"`
	Message        string `json:"message"`
}

// BatchResult is the outcome of one batch invocation.
type BatchResult struct {
	Success      bool              `json:"success"`
	Count        int               `json:"count"`
	GeneratedIDs map[string]string `json:"generated_ids"`
	Errors       []OperationError  `json:"errors"`
	ElapsedMs    int64             `json:"elapsed_ms"`
}

// BatchRun is the audit record of a finished batch.
type BatchRun struct {
	ID           string
	Kind         BatchKind
	Alias        string
	Operations   int
	Success      bool
	Count        int
	Errors       []OperationError
	GeneratedIDs map[string]string
	Elapsed      time.Duration
	StartedAt    time.Time
}
