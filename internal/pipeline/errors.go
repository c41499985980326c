package pipeline

import "errors"

// ErrUnverified indicates a record was created remotely but failed the
// post-create verification read. The source stays retained.
var ErrUnverified = errors.New("record failed post-create verification")

// ErrNoRecords indicates analysis produced nothing to store.
var ErrNoRecords = errors.New("analysis produced no records")

// Pipeline step names carried by StepError.
const (
	StepRead    = "read"
	StepParse   = "parse"
	StepAnalyze = "analyze"
	StepRoute   = "route"
	StepCreate  = "create"
	StepVerify  = "verify"
	StepSidecar = "sidecar"
)

// StepError tags a processing failure with the step it came from so the
// orchestrator can name a retain reason without matching messages.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return e.Err.Error() }

func (e *StepError) Unwrap() error { return e.Err }

// stepErr wraps err as a StepError.
func stepErr(step string, err error) error {
	return &StepError{Step: step, Err: err}
}
