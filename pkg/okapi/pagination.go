package okapi

import (
	"context"
	"errors"

	"github.com/fivetwenty-io/okapi/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrNoMoreItems = errors.New("no more items in collection")
)

// Lister fetches one page of a collection. The generic resource clients
// satisfy it through ListerFunc closures that bind resource and namespace.
type Lister interface {
	ListPage(ctx context.Context, params *QueryParams) (*List, error)
}

// ListerFunc adapts a function to the Lister interface.
type ListerFunc func(ctx context.Context, params *QueryParams) (*List, error)

// ListPage calls the function.
func (f ListerFunc) ListPage(ctx context.Context, params *QueryParams) (*List, error) {
	return f(ctx, params)
}

// PaginationOptions controls how paginated fetches walk a collection.
type PaginationOptions struct {
	// PageSize is the item limit requested per page.
	PageSize int

	// MaxPages bounds the number of pages fetched. Zero means all pages.
	MaxPages int
}

// DefaultPaginationOptions returns the standard pagination options.
func DefaultPaginationOptions() *PaginationOptions {
	return &PaginationOptions{
		PageSize: constants.DefaultPageSize,
	}
}

// PaginationIterator walks a collection item by item, fetching pages on
// demand using the server's continue token.
type PaginationIterator struct {
	ctx     context.Context
	lister  Lister
	params  *QueryParams
	buffer  []Object
	token   string
	started bool
	done    bool
}

// NewPaginationIterator creates an iterator over the lister's collection.
func NewPaginationIterator(ctx context.Context, lister Lister, params *QueryParams) *PaginationIterator {
	if params == nil {
		params = NewQueryParams()
	}

	if params.Limit == 0 {
		params.Limit = constants.DefaultPageSize
	}

	return &PaginationIterator{
		ctx:    ctx,
		lister: lister,
		params: params,
	}
}

// HasNext reports whether another item is available without fetching it.
func (it *PaginationIterator) HasNext() bool {
	if len(it.buffer) > 0 {
		return true
	}

	return !it.done
}

// Next returns the next item, fetching the next page when the current one is
// exhausted. Returns ErrNoMoreItems past the end of the collection.
func (it *PaginationIterator) Next() (*Object, error) {
	for len(it.buffer) == 0 {
		if it.done {
			return nil, ErrNoMoreItems
		}

		err := it.fetchPage()
		if err != nil {
			return nil, err
		}
	}

	item := it.buffer[0]
	it.buffer = it.buffer[1:]

	return &item, nil
}

func (it *PaginationIterator) fetchPage() error {
	params := *it.params
	params.Continue = it.token

	list, err := it.lister.ListPage(it.ctx, &params)
	if err != nil {
		return err
	}

	it.started = true
	it.buffer = append(it.buffer, list.Items...)
	it.token = list.Metadata.Continue
	it.done = it.token == ""

	return nil
}

// All collects every remaining item.
func (it *PaginationIterator) All() ([]Object, error) {
	var items []Object

	for it.HasNext() {
		item, err := it.Next()
		if err != nil {
			if errors.Is(err, ErrNoMoreItems) {
				break
			}

			return nil, err
		}

		items = append(items, *item)
	}

	return items, nil
}

// ForEach applies fn to every remaining item, stopping on the first error.
func (it *PaginationIterator) ForEach(fn func(Object) error) error {
	for it.HasNext() {
		item, err := it.Next()
		if err != nil {
			if errors.Is(err, ErrNoMoreItems) {
				return nil
			}

			return err
		}

		err = fn(*item)
		if err != nil {
			return err
		}
	}

	return nil
}

// FetchAllPages collects a whole collection across pages. A nil options
// selects DefaultPaginationOptions.
func FetchAllPages(ctx context.Context, lister Lister, params *QueryParams, options *PaginationOptions) ([]Object, error) {
	if options == nil {
		options = DefaultPaginationOptions()
	}

	if params == nil {
		params = NewQueryParams()
	}

	if options.PageSize > 0 {
		params.Limit = options.PageSize
	}

	var (
		items []Object
		token string
		pages int
	)

	for {
		pageParams := *params
		pageParams.Continue = token

		list, err := lister.ListPage(ctx, &pageParams)
		if err != nil {
			return nil, err
		}

		items = append(items, list.Items...)
		pages++

		token = list.Metadata.Continue
		if token == "" {
			break
		}

		if options.MaxPages > 0 && pages >= options.MaxPages {
			break
		}
	}

	return items, nil
}

// PageResult is one page delivered by StreamPages.
type PageResult struct {
	Items []Object
	Err   error
}

// StreamPages fetches pages in the background and delivers them on the
// returned channel, which is closed after the last page or first error.
func StreamPages(ctx context.Context, lister Lister, params *QueryParams, options *PaginationOptions) <-chan PageResult {
	if options == nil {
		options = DefaultPaginationOptions()
	}

	if params == nil {
		params = NewQueryParams()
	}

	if options.PageSize > 0 {
		params.Limit = options.PageSize
	}

	results := make(chan PageResult)

	go func() {
		defer close(results)

		var (
			token string
			pages int
		)

		for {
			pageParams := *params
			pageParams.Continue = token

			list, err := lister.ListPage(ctx, &pageParams)
			if err != nil {
				select {
				case results <- PageResult{Err: err}:
				case <-ctx.Done():
				}

				return
			}

			select {
			case results <- PageResult{Items: list.Items}:
			case <-ctx.Done():
				return
			}

			pages++

			token = list.Metadata.Continue
			if token == "" {
				return
			}

			if options.MaxPages > 0 && pages >= options.MaxPages {
				return
			}
		}
	}()

	return results
}
