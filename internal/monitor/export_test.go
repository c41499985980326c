package monitor

// Export internal identifiers for black-box tests.
var (
	WithLoadReader = withLoadReader
	WithNumCPU     = withNumCPU
)
