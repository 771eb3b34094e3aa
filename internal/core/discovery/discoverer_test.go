package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/mercadolista/catalog-service/internal/core/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	available bool
	images    []ImageResult
	texts     []TextResult
	imagesErr error
	textsErr  error

	imageQueries []string
	textQueries  []string
}

func (p *fakeProvider) Available() bool { return p.available }

func (p *fakeProvider) SearchImages(_ context.Context, query string) ([]ImageResult, error) {
	p.imageQueries = append(p.imageQueries, query)
	return p.images, p.imagesErr
}

func (p *fakeProvider) SearchText(_ context.Context, query string) ([]TextResult, error) {
	p.textQueries = append(p.textQueries, query)
	return p.texts, p.textsErr
}

type fakeStore struct {
	mu      sync.Mutex
	entries map[string]*catalog.Entry
	getErr  error
	setErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]*catalog.Entry)}
}

func (s *fakeStore) Get(_ context.Context, id string) (*catalog.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.entries[id], nil
}

func (s *fakeStore) Set(_ context.Context, entry *catalog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.entries[entry.ProductID] = entry
	return nil
}

func (s *fakeStore) IncrementScore(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return false, nil
	}
	entry.Score++
	return true, nil
}

func (s *fakeStore) QueryByKeyword(_ context.Context, keyword string) ([]*catalog.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*catalog.Entry
	for _, entry := range s.entries {
		for _, term := range entry.SearchTerms {
			if term == keyword {
				result = append(result, entry)
				break
			}
		}
	}
	return result, nil
}

func (s *fakeStore) All(_ context.Context) ([]*catalog.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*catalog.Entry
	for _, entry := range s.entries {
		result = append(result, entry)
	}
	return result, nil
}

func keywordSet(keywords ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		set[kw] = struct{}{}
	}
	return set
}

func TestDiscoverWithoutCredentialDegrades(t *testing.T) {
	provider := &fakeProvider{available: false}
	store := newFakeStore()
	d := NewDiscoverer(provider, store, slog.Default())

	result, err := d.Discover(context.Background(), "arroz", nil, "un", keywordSet("arroz"))

	require.NoError(t, err)
	assert.Equal(t, PlaceholderImageURL, result.ImageURL)
	assert.Nil(t, result.Description)
	assert.Equal(t, "un", result.Unit)
	assert.Empty(t, provider.imageQueries, "no request may be issued without a credential")
	assert.Empty(t, store.entries, "degraded discovery must not persist anything")
}

func TestDiscoverPersistsNewEntry(t *testing.T) {
	provider := &fakeProvider{
		available: true,
		images:    []ImageResult{{ImageURL: "https://cdn.example.com/arroz.jpg", Domain: "example.com", Title: "Arroz Branco Camil 5kg"}},
		texts:     []TextResult{{Snippet: "Arroz branco tipo 1, pacote de 5kg."}},
	}
	store := newFakeStore()
	d := NewDiscoverer(provider, store, slog.Default())

	result, err := d.Discover(context.Background(), "arroz branco camil", nil, "un", keywordSet("arroz", "branco", "camil"))

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/arroz.jpg", result.ImageURL)
	require.NotNil(t, result.Description)
	assert.Equal(t, "Arroz branco tipo 1, pacote de 5kg.", *result.Description)
	assert.Equal(t, "kg", result.Unit, "unresolved unit must be re-derived from the image title")

	entry := store.entries["arroz-branco-camil"]
	require.NotNil(t, entry)
	assert.Equal(t, int64(0), entry.Score)
	assert.False(t, entry.IsHumanReviewed)
	assert.Equal(t, []string{"arroz", "branco", "camil"}, entry.SearchTerms, "search terms come from the query keywords")
	require.NotNil(t, entry.Source)
	assert.Equal(t, "example.com", *entry.Source)
}

func TestDiscoverQueryShapes(t *testing.T) {
	provider := &fakeProvider{available: true}
	d := NewDiscoverer(provider, newFakeStore(), slog.Default())

	_, err := d.Discover(context.Background(), "feijao preto", nil, "un", keywordSet("feijao", "preto"))

	require.NoError(t, err)
	require.Len(t, provider.imageQueries, 1)
	assert.Equal(t, "feijao preto produto embalagem", provider.imageQueries[0])
	require.Len(t, provider.textQueries, 1)
	assert.Equal(t, "feijao preto", provider.textQueries[0])
}

func TestDiscoverKeepsExplicitUnit(t *testing.T) {
	provider := &fakeProvider{
		available: true,
		images:    []ImageResult{{ImageURL: "https://cdn.example.com/leite.jpg", Title: "Leite Integral 1l"}},
	}
	d := NewDiscoverer(provider, newFakeStore(), slog.Default())

	result, err := d.Discover(context.Background(), "leite", nil, "mL", keywordSet("leite"))

	require.NoError(t, err)
	assert.Equal(t, "mL", result.Unit, "an already resolved unit is never overwritten")
}

func TestDiscoverTruncatesLongDescription(t *testing.T) {
	long := strings.Repeat("a", 400)
	provider := &fakeProvider{
		available: true,
		texts:     []TextResult{{Snippet: long}},
	}
	d := NewDiscoverer(provider, newFakeStore(), slog.Default())

	result, err := d.Discover(context.Background(), "produto", nil, "un", keywordSet("produto"))

	require.NoError(t, err)
	require.NotNil(t, result.Description)
	assert.Len(t, *result.Description, 253)
	assert.True(t, strings.HasSuffix(*result.Description, "..."))
}

func TestDiscoverToleratesPartialFailures(t *testing.T) {
	provider := &fakeProvider{
		available: true,
		images:    []ImageResult{{ImageURL: "https://cdn.example.com/p.jpg", Title: "Produto"}},
		textsErr:  fmt.Errorf("text search down"),
	}
	store := newFakeStore()
	d := NewDiscoverer(provider, store, slog.Default())

	result, err := d.Discover(context.Background(), "produto novo", nil, "un", keywordSet("produto", "novo"))

	require.NoError(t, err, "a failed text search is tolerated")
	assert.Equal(t, "https://cdn.example.com/p.jpg", result.ImageURL)
	assert.Nil(t, result.Description)
	assert.NotNil(t, store.entries["produto-novo"], "the image result alone is enough to persist")
}

func TestDiscoverNoImageNoPersistence(t *testing.T) {
	provider := &fakeProvider{
		available: true,
		texts:     []TextResult{{Snippet: "alguma coisa"}},
	}
	store := newFakeStore()
	d := NewDiscoverer(provider, store, slog.Default())

	result, err := d.Discover(context.Background(), "produto", nil, "un", keywordSet("produto"))

	require.NoError(t, err)
	assert.Equal(t, PlaceholderImageURL, result.ImageURL)
	require.NotNil(t, result.Description)
	assert.Empty(t, store.entries, "persistence requires an image result")
}

func TestDiscoverSkipsExistingEntry(t *testing.T) {
	provider := &fakeProvider{
		available: true,
		images:    []ImageResult{{ImageURL: "https://cdn.example.com/novo.jpg", Title: "Arroz"}},
	}
	store := newFakeStore()
	existing := &catalog.Entry{ProductID: "arroz", Name: "arroz", ImageURL: "https://cdn.example.com/velho.jpg", Score: 7}
	store.entries["arroz"] = existing
	d := NewDiscoverer(provider, store, slog.Default())

	result, err := d.Discover(context.Background(), "arroz", nil, "un", keywordSet("arroz"))

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/novo.jpg", result.ImageURL, "the fresh enrichment is still returned")
	assert.Same(t, existing, store.entries["arroz"], "the existing entry is left untouched")
	assert.Equal(t, int64(7), store.entries["arroz"].Score)
}
