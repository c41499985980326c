package route

// Exports for testing.
var (
	NextFriday     = nextFriday
	MonthEnd       = monthEnd
	ContainsPhrase = containsPhrase
	FoldText       = foldText
)
