package orchestrate

// Aliases for tests living in the _test package.
var (
	PackBatches       = packBatches
	WithNow           = withNow
	WithAdmissionPoll = withAdmissionPoll
)
