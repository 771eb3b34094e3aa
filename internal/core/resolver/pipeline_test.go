package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/mercadolista/catalog-service/internal/core/catalog"
	"github.com/mercadolista/catalog-service/internal/core/discovery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore serves catalog entries by keyword and can be poisoned to fail for
// a specific keyword, simulating a per-term store outage.
type stubStore struct {
	mu          sync.Mutex
	entries     map[string]*catalog.Entry
	failKeyword string
}

func newStubStore(entries ...*catalog.Entry) *stubStore {
	s := &stubStore{entries: make(map[string]*catalog.Entry)}
	for _, e := range entries {
		s.entries[e.ProductID] = e
	}
	return s
}

func (s *stubStore) Get(_ context.Context, id string) (*catalog.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[id], nil
}

func (s *stubStore) Set(_ context.Context, entry *catalog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ProductID] = entry
	return nil
}

func (s *stubStore) IncrementScore(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return false, nil
	}
	entry.Score++
	return true, nil
}

func (s *stubStore) QueryByKeyword(_ context.Context, keyword string) ([]*catalog.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failKeyword != "" && keyword == s.failKeyword {
		return nil, fmt.Errorf("store unavailable")
	}
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

func (s *stubStore) All(_ context.Context) ([]*catalog.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*catalog.Entry
	for _, entry := range s.entries {
		result = append(result, entry)
	}
	return result, nil
}

type stubProvider struct {
	available bool
	images    []discovery.ImageResult
	texts     []discovery.TextResult
}

func (p *stubProvider) Available() bool { return p.available }

func (p *stubProvider) SearchImages(_ context.Context, _ string) ([]discovery.ImageResult, error) {
	return p.images, nil
}

func (p *stubProvider) SearchText(_ context.Context, _ string) ([]discovery.TextResult, error) {
	return p.texts, nil
}

func newTestPipeline(store catalog.Store, provider discovery.Provider, workers int) *Pipeline {
	logger := slog.Default()
	return NewPipeline(
		catalog.NewMatcher(store, logger),
		discovery.NewDiscoverer(provider, store, logger),
		logger,
		workers,
	)
}

func strPtr(s string) *string { return &s }

func TestResolveReusesCatalogMatch(t *testing.T) {
	store := newStubStore(&catalog.Entry{
		ProductID:   "arroz-branco",
		Name:        "arroz branco",
		ImageURL:    "https://cdn.example.com/arroz.jpg",
		Description: strPtr("Arroz branco tipo 1."),
		Unit:        "kg",
		SearchTerms: []string{"arroz", "branco"},
		Score:       10,
	})
	pipeline := newTestPipeline(store, &stubProvider{available: false}, 1)

	result := pipeline.Resolve(context.Background(), "Arroz Branco")

	require.NotNil(t, result.Resolution)
	assert.Equal(t, "arroz branco", result.Resolution.Name)
	assert.Equal(t, "https://cdn.example.com/arroz.jpg", result.Resolution.ImageURL)
	assert.Equal(t, "Arroz branco tipo 1.", *result.Resolution.Description)
	assert.Equal(t, "kg", result.Resolution.UnitOfMeasure, "matched entry's unit replaces the default")
}

func TestResolveKeepsParsedUnitOverMatch(t *testing.T) {
	store := newStubStore(&catalog.Entry{
		ProductID:   "leite",
		Name:        "leite",
		Unit:        "L",
		SearchTerms: []string{"leite"},
	})
	pipeline := newTestPipeline(store, &stubProvider{available: false}, 1)

	result := pipeline.Resolve(context.Background(), "leite 500ml")

	require.NotNil(t, result.Resolution)
	assert.Equal(t, "mL", result.Resolution.UnitOfMeasure)
}

func TestResolveFallsBackToDiscovery(t *testing.T) {
	store := newStubStore()
	provider := &stubProvider{
		available: true,
		images:    []discovery.ImageResult{{ImageURL: "https://cdn.example.com/novo.jpg", Domain: "example.com", Title: "Produto Novo 2l"}},
		texts:     []discovery.TextResult{{Snippet: "Um produto novo."}},
	}
	pipeline := newTestPipeline(store, provider, 1)

	result := pipeline.Resolve(context.Background(), "produto novo")

	require.NotNil(t, result.Resolution)
	assert.Equal(t, "https://cdn.example.com/novo.jpg", result.Resolution.ImageURL)
	assert.Equal(t, "L", result.Resolution.UnitOfMeasure)
	require.NotNil(t, result.Resolution.Description)
	assert.Equal(t, "Um produto novo.", *result.Resolution.Description)

	persisted, err := store.Get(context.Background(), "produto-novo")
	require.NoError(t, err)
	require.NotNil(t, persisted, "discovery must persist the new entry")
}

func TestResolveDegradedWithoutProvider(t *testing.T) {
	pipeline := newTestPipeline(newStubStore(), &stubProvider{available: false}, 1)

	result := pipeline.Resolve(context.Background(), "produto desconhecido")

	require.NotNil(t, result.Resolution, "provider absence is degraded success, not an error")
	assert.Equal(t, discovery.PlaceholderImageURL, result.Resolution.ImageURL)
	assert.Nil(t, result.Resolution.Description)
	assert.Equal(t, "un", result.Resolution.UnitOfMeasure)
}

func TestResolveManyIsolatesFailures(t *testing.T) {
	store := newStubStore(
		&catalog.Entry{ProductID: "arroz", Name: "arroz", ImageURL: "https://cdn.example.com/a.jpg", Unit: "kg", SearchTerms: []string{"arroz"}},
		&catalog.Entry{ProductID: "feijao", Name: "feijao", ImageURL: "https://cdn.example.com/f.jpg", Unit: "kg", SearchTerms: []string{"feijao"}},
	)
	store.failKeyword = "quebrado"
	pipeline := newTestPipeline(store, &stubProvider{available: false}, 2)

	results := pipeline.ResolveMany(context.Background(), []string{"arroz", "quebrado", "feijao"})

	require.Len(t, results, 3, "batch responses always match the request length")
	assert.NotNil(t, results[0].Resolution)
	require.NotNil(t, results[1].Failure, "the failing term gets an error slot")
	assert.Contains(t, results[1].Failure.Error, "quebrado", "the error slot carries the original term")
	assert.NotNil(t, results[2].Resolution, "a failing sibling never stops the batch")
}

func TestResolveManyPreservesOrder(t *testing.T) {
	store := newStubStore()
	pipeline := newTestPipeline(store, &stubProvider{available: false}, 4)

	rawTerms := make([]string, 20)
	for i := range rawTerms {
		rawTerms[i] = fmt.Sprintf("produto numero %d", i)
	}

	results := pipeline.ResolveMany(context.Background(), rawTerms)

	require.Len(t, results, len(rawTerms))
	for i, result := range results {
		require.NotNil(t, result.Resolution)
		assert.Equal(t, rawTerms[i], result.Resolution.Name, "slot %d must hold its own term", i)
	}
}

func TestResolveManyEmptyBatch(t *testing.T) {
	pipeline := newTestPipeline(newStubStore(), &stubProvider{available: false}, 4)

	results := pipeline.ResolveMany(context.Background(), nil)

	assert.Empty(t, results)
}

func TestResultJSONVariants(t *testing.T) {
	price := 12.5
	success := Result{Resolution: &Resolution{Name: "arroz", Price: &price, UnitOfMeasure: "kg", ImageURL: "https://cdn.example.com/a.jpg"}}
	failed := Result{Failure: &Failure{Error: "Não foi possível processar o termo: x", Details: "detalhe"}}

	successJSON, err := json.Marshal(success)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"arroz","price":12.5,"unitOfMeasure":"kg","imageUrl":"https://cdn.example.com/a.jpg","description":null}`, string(successJSON))

	failedJSON, err := json.Marshal(failed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"Não foi possível processar o termo: x","details":"detalhe"}`, string(failedJSON))
}
