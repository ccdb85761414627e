package classify

import (
	lru "github.com/hashicorp/golang-lru"
)

// decision bundles the two pure classifications for one path so a single
// cache lookup serves both FileKindOf and LibraryName.
type decision struct {
	fileKind    FileKind
	libraryName string
	hasLibName  bool
}

// Cached wraps FileKindOf/LibraryName with a bounded LRU cache, grounded
// on the teacher's binary.Cache (github.com/hashicorp/golang-lru). The
// process inventory (C12) classifies the /proc/<pid>/fd link targets of
// every PID on the host through it; the same file path recurs across many
// processes, so caching collapses repeated classification of identical
// paths to one evaluation each. The inventory's /proc/<pid>/maps walk does
// not go through the cache. The streaming hot path (C9) does not use this —
// at one event at a time a cache lookup is not a win over the direct
// functions above.
type Cached struct {
	cache *lru.Cache
}

// NewCached builds a Cached classifier with the given capacity (number of
// distinct paths remembered). A non-positive capacity falls back to 4096.
func NewCached(capacity int) *Cached {
	if capacity <= 0 {
		capacity = 4096
	}
	c, err := lru.New(capacity)
	if err != nil {
		// lru.New only errors on a non-positive size, which we've
		// already guarded against above.
		panic(err)
	}
	return &Cached{cache: c}
}

// FileKindOf is the cached equivalent of the package-level FileKindOf.
func (c *Cached) FileKindOf(path string) FileKind {
	return c.lookup(path).fileKind
}

// LibraryName is the cached equivalent of the package-level LibraryName.
func (c *Cached) LibraryName(path string) (string, bool) {
	d := c.lookup(path)
	return d.libraryName, d.hasLibName
}

func (c *Cached) lookup(path string) decision {
	if v, ok := c.cache.Get(path); ok {
		return v.(decision)
	}
	name, ok := LibraryName(path)
	d := decision{
		fileKind:    FileKindOf(path),
		libraryName: name,
		hasLibName:  ok,
	}
	c.cache.Add(path, d)
	return d
}
