package cache

// ScopedKeyer wraps a Keyer with a prefix so several deployments can share
// one Redis instance without colliding.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "canopy:staging:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// SnapshotKey generates a prefixed snapshot key.
func (k *ScopedKeyer) SnapshotKey(inputHash string, opts SnapshotKeyOpts) string {
	return k.prefix + k.inner.SnapshotKey(inputHash, opts)
}

// ResultKey generates a prefixed result key.
func (k *ScopedKeyer) ResultKey(inputHash string, opts SnapshotKeyOpts) string {
	return k.prefix + k.inner.ResultKey(inputHash, opts)
}
