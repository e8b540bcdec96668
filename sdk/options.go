package sdk

// RequestOptions carries optional per-call request attributes. Every field
// is optional; zero values are left out of the payload entirely.
type RequestOptions struct {
	// UserKey overrides the stored identity token for this call.
	UserKey string
	// BlockedCreatives lists creative ids that must not be returned.
	BlockedCreatives []int
	// FlightViewTimes maps a flight id to the unix times it was viewed.
	FlightViewTimes map[string][]int64
	Keywords        []string
	// URL is the referring page.
	URL string
	// Consent is forwarded to the engine unmodified, e.g. {"gdpr": true}.
	Consent map[string]any

	EnableBotFiltering   *bool
	IncludePricing       *bool
	IncludeMatchedPoints *bool

	// AdditionalOptions are merged into the top level of the payload after
	// every other field and may overwrite any of them.
	AdditionalOptions map[string]any
}

// Bool returns a pointer to v for the tri-state flags on RequestOptions.
func Bool(v bool) *bool { return &v }
