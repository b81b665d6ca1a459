package schema

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of cached normalization results.
const DefaultCacheSize = 256

// Normalizer wraps Normalize with an LRU cache keyed by kind and content hash,
// so topics that share one registry schema are walked once. Safe for
// concurrent use. Callers receive copies and may modify them.
type Normalizer struct {
	cache *lru.Cache[string, *Result]
}

// NewNormalizer creates a Normalizer holding at most size results. A
// non-positive size uses DefaultCacheSize.
func NewNormalizer(size int) *Normalizer {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *Result](size)
	if err != nil {
		panic(err)
	}
	return &Normalizer{cache: cache}
}

// Normalize behaves like the package-level Normalize. Errors are not cached.
func (n *Normalizer) Normalize(raw []byte, kind Kind) (*Result, error) {
	if !kind.Supported() {
		return nil, &UnsupportedKindError{Kind: kind}
	}
	key := string(kind) + ":" + ContentHash(raw)
	if res, ok := n.cache.Get(key); ok {
		return res.clone(), nil
	}
	res, err := Normalize(raw, kind)
	if err != nil {
		return nil, err
	}
	n.cache.Add(key, res)
	return res.clone(), nil
}

// Len returns the number of cached results.
func (n *Normalizer) Len() int {
	return n.cache.Len()
}
