package pager

import "context"

// PageID is an opaque continuation token identifying where the next page
// fetch resumes. The dynamic type must be comparable (it is used as a map
// key); beyond equality the pager never inspects it. A nil PageID in
// Page.NextPageID signals the end of the dataset.
type PageID any

// Page is one batch of elements plus the continuation token for the
// following batch.
type Page[E any] struct {
	Elements []E

	// NextPageID is the identifier of the next page, or nil when the
	// dataset is exhausted.
	NextPageID PageID
}

// PageSource produces ordered pages of elements. Implementations are
// treated as expensive and possibly failing; the pager never invokes
// Page more than once concurrently for the same identifier.
type PageSource[E any] interface {
	// FirstPageID returns the identifier of the first page.
	FirstPageID() PageID

	// Page fetches the page at id. It must honor ctx cancellation.
	Page(ctx context.Context, id PageID) (Page[E], error)
}

// SourceFunc adapts a first-page identifier and a fetch function into a
// PageSource.
type SourceFunc[E any] struct {
	First PageID
	Fetch func(ctx context.Context, id PageID) (Page[E], error)
}

// FirstPageID implements PageSource.
func (s SourceFunc[E]) FirstPageID() PageID { return s.First }

// Page implements PageSource.
func (s SourceFunc[E]) Page(ctx context.Context, id PageID) (Page[E], error) {
	return s.Fetch(ctx, id)
}

// Cursor is a string continuation token. The empty cursor addresses the
// first page.
type Cursor = string

// ListResult is the outcome of one CursorSource.List call.
type ListResult[E any] struct {
	// Items contains the elements of this page in order.
	Items []E

	// NextCursor addresses the next page. Ignored when HasMore is false.
	NextCursor Cursor

	// HasMore indicates whether further items are available.
	HasMore bool
}

// CursorSource is the common string-cursor special case of PageSource.
// Remote APIs that hand out opaque cursor tokens implement this directly.
type CursorSource[E any] interface {
	List(ctx context.Context, cursor Cursor) (ListResult[E], error)
}

// CursorSourceFunc adapts a function into a CursorSource.
type CursorSourceFunc[E any] func(ctx context.Context, cursor Cursor) (ListResult[E], error)

// List implements CursorSource.
func (f CursorSourceFunc[E]) List(ctx context.Context, cursor Cursor) (ListResult[E], error) {
	return f(ctx, cursor)
}

// FromCursors exposes a CursorSource as a PageSource whose PageIDs are
// the source's cursors.
func FromCursors[E any](src CursorSource[E]) PageSource[E] {
	return cursorAdapter[E]{src: src}
}

type cursorAdapter[E any] struct {
	src CursorSource[E]
}

func (a cursorAdapter[E]) FirstPageID() PageID { return Cursor("") }

func (a cursorAdapter[E]) Page(ctx context.Context, id PageID) (Page[E], error) {
	cursor, ok := id.(Cursor)
	if !ok {
		return Page[E]{}, ErrInvalidPageID
	}
	res, err := a.src.List(ctx, cursor)
	if err != nil {
		return Page[E]{}, err
	}
	page := Page[E]{Elements: res.Items}
	if res.HasMore && res.NextCursor != "" {
		page.NextPageID = res.NextCursor
	}
	return page, nil
}
