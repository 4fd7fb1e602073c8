package menu

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubReader struct {
	mu        sync.Mutex
	items     []Item
	options   []Option
	itemErr   error
	itemIDs   []string
	optionIDs []string
}

func (s *stubReader) ListMenuItemsByIDs(ctx context.Context, foodtruckID string, ids []string) ([]Item, error) {
	s.mu.Lock()
	s.itemIDs = ids
	s.mu.Unlock()
	if s.itemErr != nil {
		return nil, s.itemErr
	}
	return s.items, nil
}

func (s *stubReader) ListCategoryOptionsByIDs(ctx context.Context, foodtruckID string, ids []string) ([]Option, error) {
	s.mu.Lock()
	s.optionIDs = ids
	s.mu.Unlock()
	return s.options, nil
}

func TestLoadBatchesDistinctIDs(t *testing.T) {
	r := &stubReader{
		items:   []Item{{ID: "a", FoodtruckID: "truck-1", IsAvailable: true}, {ID: "b", FoodtruckID: "truck-1", IsAvailable: true}},
		options: []Option{{ID: "o1", IsAvailable: true}},
	}
	snap, err := Loader{R: r}.Load(context.Background(), "truck-1", []string{"b", "a", "b"}, []string{"o1", "o1"})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, r.itemIDs)
	require.Equal(t, []string{"o1"}, r.optionIDs)
	require.Len(t, snap.Items, 2)
	require.Contains(t, snap.Options, "o1")
}

func TestLoadSkipsOptionQueryWithoutOptions(t *testing.T) {
	r := &stubReader{items: []Item{{ID: "a", IsAvailable: true}}}
	_, err := Loader{R: r}.Load(context.Background(), "truck-1", []string{"a"}, nil)
	require.NoError(t, err)
	require.Nil(t, r.optionIDs)
}

func TestLoadRejectsForeignTenantItem(t *testing.T) {
	r := &stubReader{items: []Item{{ID: "a", FoodtruckID: "truck-2", IsAvailable: true}}}
	_, err := Loader{R: r}.Load(context.Background(), "truck-1", []string{"a"}, nil)
	require.ErrorIs(t, err, ErrUnknownItem)
}

func TestLoadPropagatesReaderFailure(t *testing.T) {
	boom := errors.New("connection refused")
	r := &stubReader{itemErr: boom}
	_, err := Loader{R: r}.Load(context.Background(), "truck-1", []string{"a"}, nil)
	require.ErrorIs(t, err, boom)
}

func TestGuard(t *testing.T) {
	snap := Snapshot{Items: map[string]Item{
		"a": {ID: "a", Name: "Burger", IsAvailable: true},
		"b": {ID: "b", Name: "Frites", IsAvailable: false},
	}}
	require.NoError(t, Guard([]string{"a"}, snap))
	require.ErrorIs(t, Guard([]string{"a", "z"}, snap), ErrUnknownItem)

	err := Guard([]string{"b"}, snap)
	require.ErrorIs(t, err, ErrItemUnavailable)
	require.Contains(t, err.Error(), "ITEM_UNAVAILABLE")
}
