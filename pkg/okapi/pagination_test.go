package okapi_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/okapi/pkg/okapi"
)

var errPageUnavailable = errors.New("page unavailable")

// pagedLister serves a fixed collection in pages, recording how it was called.
type pagedLister struct {
	items    []okapi.Object
	pageSize int
	calls    int
	failOn   int
}

func newPagedLister(total, pageSize int) *pagedLister {
	items := make([]okapi.Object, 0, total)
	for i := 0; i < total; i++ {
		items = append(items, okapi.Object{
			Metadata: okapi.ObjectMeta{Name: fmt.Sprintf("pod-%03d", i)},
		})
	}

	return &pagedLister{items: items, pageSize: pageSize}
}

func (l *pagedLister) ListPage(ctx context.Context, params *okapi.QueryParams) (*okapi.List, error) {
	l.calls++
	if l.failOn > 0 && l.calls >= l.failOn {
		return nil, errPageUnavailable
	}

	start := 0
	if params.Continue != "" {
		offset, err := strconv.Atoi(params.Continue)
		if err != nil {
			return nil, err
		}

		start = offset
	}

	size := l.pageSize
	if params.Limit > 0 && params.Limit < size {
		size = params.Limit
	}

	end := start + size
	if end > len(l.items) {
		end = len(l.items)
	}

	list := &okapi.List{Items: l.items[start:end]}
	if end < len(l.items) {
		list.Metadata.Continue = strconv.Itoa(end)
	}

	return list, nil
}

func TestPaginationIterator(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("walks all pages", func(t *testing.T) {
		t.Parallel()

		lister := newPagedLister(7, 3)
		iterator := okapi.NewPaginationIterator(ctx, lister, okapi.NewQueryParams().WithLimit(3))

		var names []string

		for iterator.HasNext() {
			item, err := iterator.Next()
			if errors.Is(err, okapi.ErrNoMoreItems) {
				break
			}

			require.NoError(t, err)
			names = append(names, item.Name())
		}

		assert.Len(t, names, 7)
		assert.Equal(t, "pod-000", names[0])
		assert.Equal(t, "pod-006", names[6])
		assert.Equal(t, 3, lister.calls)
	})

	t.Run("next past end", func(t *testing.T) {
		t.Parallel()

		lister := newPagedLister(1, 10)
		iterator := okapi.NewPaginationIterator(ctx, lister, nil)

		_, err := iterator.Next()
		require.NoError(t, err)

		_, err = iterator.Next()
		assert.ErrorIs(t, err, okapi.ErrNoMoreItems)
	})

	t.Run("all", func(t *testing.T) {
		t.Parallel()

		lister := newPagedLister(5, 2)
		iterator := okapi.NewPaginationIterator(ctx, lister, okapi.NewQueryParams().WithLimit(2))

		items, err := iterator.All()
		require.NoError(t, err)
		assert.Len(t, items, 5)
	})

	t.Run("foreach stops on callback error", func(t *testing.T) {
		t.Parallel()

		lister := newPagedLister(5, 2)
		iterator := okapi.NewPaginationIterator(ctx, lister, okapi.NewQueryParams().WithLimit(2))

		errStop := errors.New("stop")
		seen := 0

		err := iterator.ForEach(func(okapi.Object) error {
			seen++
			if seen == 3 {
				return errStop
			}

			return nil
		})
		require.ErrorIs(t, err, errStop)
		assert.Equal(t, 3, seen)
	})

	t.Run("propagates fetch errors", func(t *testing.T) {
		t.Parallel()

		lister := newPagedLister(9, 3)
		lister.failOn = 2
		iterator := okapi.NewPaginationIterator(ctx, lister, okapi.NewQueryParams().WithLimit(3))

		_, err := iterator.Next()
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			_, err = iterator.Next()
			require.NoError(t, err)
		}

		_, err = iterator.Next()
		assert.ErrorIs(t, err, errPageUnavailable)
	})
}

func TestFetchAllPages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("collects whole collection", func(t *testing.T) {
		t.Parallel()

		lister := newPagedLister(10, 4)
		items, err := okapi.FetchAllPages(ctx, lister, nil, &okapi.PaginationOptions{PageSize: 4})
		require.NoError(t, err)
		assert.Len(t, items, 10)
		assert.Equal(t, 3, lister.calls)
	})

	t.Run("max pages bound", func(t *testing.T) {
		t.Parallel()

		lister := newPagedLister(10, 4)
		items, err := okapi.FetchAllPages(ctx, lister, nil, &okapi.PaginationOptions{PageSize: 4, MaxPages: 2})
		require.NoError(t, err)
		assert.Len(t, items, 8)
		assert.Equal(t, 2, lister.calls)
	})

	t.Run("error aborts", func(t *testing.T) {
		t.Parallel()

		lister := newPagedLister(10, 4)
		lister.failOn = 2

		_, err := okapi.FetchAllPages(ctx, lister, nil, &okapi.PaginationOptions{PageSize: 4})
		assert.ErrorIs(t, err, errPageUnavailable)
	})
}

func TestStreamPages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("delivers pages then closes", func(t *testing.T) {
		t.Parallel()

		lister := newPagedLister(7, 3)
		results := okapi.StreamPages(ctx, lister, nil, &okapi.PaginationOptions{PageSize: 3})

		total := 0

		for result := range results {
			require.NoError(t, result.Err)

			total += len(result.Items)
		}

		assert.Equal(t, 7, total)
	})

	t.Run("error delivered then closed", func(t *testing.T) {
		t.Parallel()

		lister := newPagedLister(9, 3)
		lister.failOn = 2
		results := okapi.StreamPages(ctx, lister, nil, &okapi.PaginationOptions{PageSize: 3})

		var lastErr error

		for result := range results {
			if result.Err != nil {
				lastErr = result.Err
			}
		}

		assert.ErrorIs(t, lastErr, errPageUnavailable)
	})
}
