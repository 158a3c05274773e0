// Package pager walks cursor-based list endpoints to exhaustion.
package pager

// Page is one page of records from a cursor-based listing.
type Page[T any] struct {
	Items      []T
	HasMore    bool
	NextCursor string
}

// FetchFunc fetches one page. An empty cursor requests the first page.
type FetchFunc[T any] func(cursor string) (Page[T], error)

// Collect concatenates every page in order. Paging stops when the
// upstream reports no more data, and also when it signals more data but
// returns no cursor — that would otherwise loop forever, so it is
// treated as an implicit stop. Errors propagate unchanged.
func Collect[T any](fetch FetchFunc[T]) ([]T, error) {
	var all []T
	cursor := ""
	for {
		page, err := fetch(cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if !page.HasMore || page.NextCursor == "" {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

// CollectWhile concatenates pages like Collect but bounds the walk with
// a predicate: records failing keep are discarded, and a page that
// contains any such record is the last page consumed. Records that pass
// keep are always retained, even when they share a page with records
// that do not.
func CollectWhile[T any](fetch FetchFunc[T], keep func(T) bool) ([]T, error) {
	var all []T
	cursor := ""
	for {
		page, err := fetch(cursor)
		if err != nil {
			return nil, err
		}
		outside := false
		for _, item := range page.Items {
			if keep(item) {
				all = append(all, item)
			} else {
				outside = true
			}
		}
		if outside || !page.HasMore || page.NextCursor == "" {
			return all, nil
		}
		cursor = page.NextCursor
	}
}
