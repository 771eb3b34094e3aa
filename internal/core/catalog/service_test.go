package catalog

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListSortedByScoreDesc(t *testing.T) {
	store := newMemStore(
		&Entry{ProductID: "a", Name: "a", Score: 1},
		&Entry{ProductID: "b", Name: "b", Score: 10},
		&Entry{ProductID: "c", Name: "c", Score: 5},
	)
	service := NewService(store, testLogger())

	entries, err := service.List(context.Background())

	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, int64(10), entries[0].Score)
	assert.Equal(t, int64(5), entries[1].Score)
	assert.Equal(t, int64(1), entries[2].Score)
}

func TestSearchNormalizesQuery(t *testing.T) {
	// "Arroz Branco" and "arroz branco" must hit the same stored term.
	store := newMemStore(
		&Entry{ProductID: "arroz-branco", Name: "arroz branco", SearchTerms: []string{"arroz branco"}, Score: 2},
	)
	service := NewService(store, testLogger())

	entries, err := service.Search(context.Background(), "Arroz Branco")

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "arroz-branco", entries[0].ProductID)
}

func TestSearchNoResults(t *testing.T) {
	service := NewService(newMemStore(), testLogger())

	entries, err := service.Search(context.Background(), "nada")

	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestVoteIncrementsExisting(t *testing.T) {
	store := newMemStore(&Entry{ProductID: "arroz", Name: "arroz", Score: 3})
	service := NewService(store, testLogger())

	err := service.Vote(context.Background(), "arroz", VoteRequest{})

	require.NoError(t, err)
	entry, err := store.Get(context.Background(), "arroz")
	require.NoError(t, err)
	assert.Equal(t, int64(4), entry.Score)
}

func TestVoteCreatesAbsentEntry(t *testing.T) {
	store := newMemStore()
	service := NewService(store, testLogger())

	err := service.Vote(context.Background(), "feijao-carioca", VoteRequest{
		Name:     "Feijão Carioca",
		ImageURL: "https://example.com/feijao.jpg",
		Unit:     "kg",
	})

	require.NoError(t, err)
	entry, err := store.Get(context.Background(), "feijao-carioca")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, int64(1), entry.Score)
	assert.False(t, entry.IsHumanReviewed)
	assert.Equal(t, "kg", entry.Unit)
	assert.Equal(t, []string{"carioca", "feijao"}, entry.SearchTerms)
}

func TestVoteScoreMonotonicUnderConcurrency(t *testing.T) {
	store := newMemStore(&Entry{ProductID: "arroz", Name: "arroz", Score: 0})
	service := NewService(store, testLogger())

	const voters = 50
	var wg sync.WaitGroup
	wg.Add(voters)
	for i := 0; i < voters; i++ {
		go func() {
			defer wg.Done()
			_ = service.Vote(context.Background(), "arroz", VoteRequest{})
		}()
	}
	wg.Wait()

	entry, err := store.Get(context.Background(), "arroz")
	require.NoError(t, err)
	assert.Equal(t, int64(voters), entry.Score, "no increment may be lost")
}

func TestDiscoveredEntryRoundTrip(t *testing.T) {
	store := newMemStore()
	entry := &Entry{
		ProductID:   "arroz-branco-camil",
		Name:        "arroz branco camil",
		SearchTerms: []string{"arroz", "branco", "camil"},
	}
	require.NoError(t, store.Set(context.Background(), entry))

	for _, keyword := range entry.SearchTerms {
		entries, err := store.QueryByKeyword(context.Background(), keyword)
		require.NoError(t, err)
		require.Len(t, entries, 1, "entry must be retrievable by keyword %q", keyword)
		assert.Equal(t, entry.ProductID, entries[0].ProductID)
	}
}
