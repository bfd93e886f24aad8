package dedup

// RefKeyKind tags the namespace of a reference cache key, so an IMO number
// and a vessel name that happen to share text can never collide.
type RefKeyKind int

const (
	// ByIMO keys a cache entry by exact IMO number
	ByIMO RefKeyKind = iota
	// ByName keys a cache entry by normalized vessel name
	ByName
)

// RefKey is a typed cache key: kind plus normalized identifier
type RefKey struct {
	Kind  RefKeyKind
	Value string
}

// RefCache maps normalized vessel identifiers to the record IDs of primaries
// resolved earlier in the same run. It is created per invocation and
// discarded afterwards, purely as a speed optimization: clearing it and
// recomputing never changes outcomes, because cached hits are always
// re-scored before use.
type RefCache struct {
	entries map[RefKey]uint
}

// NewRefCache creates an empty per-run cache
func NewRefCache() *RefCache {
	return &RefCache{entries: make(map[RefKey]uint)}
}

// Get returns the cached record ID for a key, if present
func (c *RefCache) Get(key RefKey) (uint, bool) {
	if key.Value == "" {
		return 0, false
	}
	id, ok := c.entries[key]
	return id, ok
}

// Put stores a resolved record ID under a key. Empty identifiers are ignored.
func (c *RefCache) Put(key RefKey, recordID uint) {
	if key.Value == "" {
		return
	}
	c.entries[key] = recordID
}

// Clear discards all entries
func (c *RefCache) Clear() {
	c.entries = make(map[RefKey]uint)
}

// Len returns the number of cached entries
func (c *RefCache) Len() int {
	return len(c.entries)
}
