package pagecache

import "fmt"

// Key identifies a cached page.
type Key struct {
	// Source is the cache namespace, one per decorated source.
	Source string

	// Cursor is the page's continuation token; empty for the first page.
	Cursor string
}

// String generates a deterministic Redis key.
// Format: pager:<source>:cursor=<cursor>
//
// Example:
//
//	pager:orders:cursor=eyJvZmZzZXQiOjUwfQ
func (k Key) String() string {
	return fmt.Sprintf("pager:%s:cursor=%s", k.Source, k.Cursor)
}

// Prefix returns the key prefix shared by all cursors of a source, used
// to invalidate a whole namespace.
func Prefix(source string) string {
	return fmt.Sprintf("pager:%s:cursor=", source)
}
