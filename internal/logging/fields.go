package logging

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldFile      = "file"
	FieldStem      = "stem"
	FieldBatch     = "batch"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStage     = "stage"
	FieldSafety    = "safety"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldReason   = "reason"

	// Media fields
	FieldDuration = "duration"
	FieldSize     = "size"
	FieldBackend  = "backend"

	// Routing fields
	FieldCategory   = "category"
	FieldProject    = "project"
	FieldConfidence = "confidence"

	// Path fields
	FieldPath       = "path"
	FieldSourcePath = "source_path"
	FieldTargetPath = "target_path"
)
