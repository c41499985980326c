package analyze

// Exports for testing.

var (
	ClampTitle    = clampTitle
	FallbackTitle = fallbackTitle
	ExtractJSON   = extractJSON
	Excerpt       = excerpt
)
