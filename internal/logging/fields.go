package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldItemID is the standardized structured logging key for work-item identifiers.
	FieldItemID = "item_id"
	// FieldWorkerID is the standardized structured logging key for worker slot numbers.
	FieldWorkerID = "worker_id"
	// FieldCorrelationID is the standardized structured logging key for per-claim correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType is the standardized structured logging key for machine-readable event names.
	FieldEventType = "event_type"
	// FieldErrorHint is the standardized structured logging key for operator guidance on errors.
	FieldErrorHint = "error_hint"
)
