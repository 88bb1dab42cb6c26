package registry

// OperationRegistry is the on-disk list of external operations and their
// cache lifetimes.
type OperationRegistry struct {
	Version    string      `json:"version,omitempty"`
	Operations []Operation `json:"operations"`
}

type Operation struct {
	ID          string `json:"id"`
	TTL         string `json:"ttl"`
	Cacheable   bool   `json:"cacheable"`
	Description string `json:"description"`
}
