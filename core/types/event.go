package types

// Event represents a typed event emitted by the vault during state
// transitions, keyed by attribute maps for downstream consumers.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
