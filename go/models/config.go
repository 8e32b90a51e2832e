package models

// Config holds per-invocation options. Nothing here is persisted.
type Config struct {
	Color   bool
	Verbose bool

	// Manual registration addresses short-circuit the locator when both are set.
	ManualCodeRegistration     uint64
	ManualMetadataRegistration uint64
	SkipSearch                 bool

	Compress bool
	Output   string
}
