// Package pager implements a client-side pagination coordinator: it
// incrementally builds a deduplicated, ordered collection of elements
// from a source of continuation-token pages, while coordinating fetch
// concurrency, prefetching and error recovery.
//
// The central type is Results, an observable façade combining three
// pieces:
//
//   - a PageSource supplying pages and continuation tokens,
//   - a Loader enforcing at most one concurrent fetch per page
//     identifier,
//   - an ordered identity-keyed collection merging pages under a
//     configurable append strategy.
//
// Example usage:
//
//	results, err := pager.New(source, pager.Config[int64, Order]{
//		Identify: func(o Order) int64 { return o.ID },
//		Prefetch: prefetch.Bottom{Offscreen: 10},
//	})
//	if err != nil { ... }
//	cancel := results.Subscribe(func(s pager.Snapshot) { render(s) })
//	defer cancel()
//	results.Start(ctx)
//
// UI contract: when the element at index i becomes visible, call
// results.OnElementAppear(ctx, i); when the user pulls to refresh, call
// results.Refresh(ctx); when a recorded error is shown and the user taps
// retry, call results.Retry(ctx, nil).
package pager
