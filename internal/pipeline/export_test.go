package pipeline

// Aliases for private option injectors used by external tests.
var WithNow = withNow
