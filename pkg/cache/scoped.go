package cache

// ScopedKeyer prefixes every key from an inner Keyer. The server uses one
// per backend URL so two backends never share rendered assets.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. A nil inner keyer uses
// DefaultKeyer.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) AssetKey(url string) string {
	return k.prefix + k.inner.AssetKey(url)
}

func (k *ScopedKeyer) RenderKey(page string, opts RenderKeyOpts) string {
	return k.prefix + k.inner.RenderKey(page, opts)
}

func (k *ScopedKeyer) RasterKey(svgHash string, width int) string {
	return k.prefix + k.inner.RasterKey(svgHash, width)
}

func (k *ScopedKeyer) CompositeKey(inputHash string, opts CompositeKeyOpts) string {
	return k.prefix + k.inner.CompositeKey(inputHash, opts)
}
