package types

// Event is the broadcast envelope handed to emitters. Attributes are flat
// string pairs so downstream consumers (logs, indexers) never need to know
// the concrete payload type.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
}
