package peers

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"peer_valuation/pkg/core/agent"
	"peer_valuation/pkg/core/calc"
	"peer_valuation/pkg/core/llm"
	"peer_valuation/pkg/models"
)

// --- Fakes ---

type memEntry struct {
	space  string
	vector []float64
}

type memStore struct {
	mu   sync.Mutex
	data map[string]memEntry
	sets int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]memEntry)}
}

func (m *memStore) Get(ctx context.Context, name, space string) ([]float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[models.NormalizeName(name)]
	if !ok || e.space != space {
		return nil, false
	}
	return e.vector, true
}

func (m *memStore) Set(ctx context.Context, name, space string, vector []float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	m.data[models.NormalizeName(name)] = memEntry{space: space, vector: vector}
	return nil
}

type countingEmbedder struct {
	calls atomic.Int32
	texts sync.Map
	fn    func(text string) ([]float64, error)
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	e.calls.Add(1)
	e.texts.Store(text, true)
	if e.fn != nil {
		return e.fn(text)
	}
	return []float64{1, 0}, nil
}

func newTestBuilder(e llm.Embedder, s VectorStore) *Builder {
	return NewBuilder(e, s, arbor.NewLogger())
}

// --- BuildVector ---

func TestBuildVector_WeightsAndNumerics(t *testing.T) {
	e := &countingEmbedder{}
	b := newTestBuilder(e, nil)

	c := &models.Company{
		Name:          "Acme",
		Description:   "Industrial robots",
		RevenueGrowth: models.Float(0.10),
		EBITDAMargin:  models.Float(0.30),
		CapexPct:      models.Float(0.05),
	}
	vec, err := b.BuildVector(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, vec, 5)

	assert.InDelta(t, 0.85, vec[0], 1e-12)
	assert.InDelta(t, 0.0, vec[1], 1e-12)

	z := calc.ZScores([]float64{0.10, 0.30, 0.05})
	for i := 0; i < 3; i++ {
		assert.InDelta(t, z[i]*0.15, vec[2+i], 1e-12)
	}
	_, usedDescription := e.texts.Load("Industrial robots")
	assert.True(t, usedDescription)
}

func TestBuildVector_NameFallbackAndNoNumerics(t *testing.T) {
	e := &countingEmbedder{}
	b := newTestBuilder(e, nil)
	b.UseNumerics = false

	vec, err := b.BuildVector(context.Background(), &models.Company{Name: " Blank Co ", Description: "   "})
	require.NoError(t, err)
	assert.Len(t, vec, 2)

	_, usedName := e.texts.Load("Blank Co")
	assert.True(t, usedName)
}

func TestBuildVector_CacheHitSkipsEmbedding(t *testing.T) {
	store := newMemStore()
	e := &countingEmbedder{}
	b := newTestBuilder(e, store)
	store.data["acme"] = memEntry{space: b.Space(), vector: []float64{9, 9, 9}}

	vec, err := b.BuildVector(context.Background(), &models.Company{Name: "ACME"})
	require.NoError(t, err)
	assert.Equal(t, []float64{9, 9, 9}, vec)
	assert.Equal(t, int32(0), e.calls.Load())
}

func TestBuildVector_WritesBackAndForceRegenerate(t *testing.T) {
	store := newMemStore()
	e := &countingEmbedder{}
	b := newTestBuilder(e, store)
	ctx := context.Background()
	c := &models.Company{Name: "Acme", Description: "robots"}

	_, err := b.BuildVector(ctx, c)
	require.NoError(t, err)
	_, err = b.BuildVector(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, int32(1), e.calls.Load(), "second call should hit the cache")

	b.ForceRegenerate = true
	_, err = b.BuildVector(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, int32(2), e.calls.Load())
	assert.Equal(t, 2, store.sets)
}

func TestBuildVector_ProviderSwitchMissesCache(t *testing.T) {
	ctx := context.Background()
	m := agent.NewManager(agent.Config{
		ActiveProvider: agent.ProviderHash,
		Providers:      map[string]agent.ProviderConfig{agent.ProviderHash: {Dimensions: 8}},
	}, arbor.NewLogger())
	alt := &countingEmbedder{fn: func(string) ([]float64, error) { return []float64{0.1, 0.2, 0.3, 0.4}, nil }}
	m.Register("alt", alt)

	store := newMemStore()
	b := newTestBuilder(m, store)
	b.UseNumerics = false

	target := &models.Company{Name: "Acme", Description: "industrial robots"}
	peer := &models.Company{Name: "Beta", Description: "factory automation"}
	hashed, err := b.BuildVector(ctx, peer)
	require.NoError(t, err)
	assert.Len(t, hashed, 8)

	require.NoError(t, m.SetGlobalProvider("alt"))
	fresh, err := b.BuildVector(ctx, peer)
	require.NoError(t, err)
	assert.Len(t, fresh, 4, "a vector from the previous provider must not be served")
	assert.Equal(t, int32(1), alt.calls.Load())

	targetVec, err := b.BuildVector(ctx, target)
	require.NoError(t, err)
	_, ok := calc.CosineSimilarity(targetVec, fresh)
	assert.True(t, ok, "target and peer share one space after the switch")

	// Cached in the new space now
	_, err = b.BuildVector(ctx, peer)
	require.NoError(t, err)
	assert.Equal(t, int32(2), alt.calls.Load())
}

func TestBuildVector_Errors(t *testing.T) {
	failing := &countingEmbedder{fn: func(string) ([]float64, error) {
		return nil, models.ErrEmbeddingFailure
	}}
	_, err := newTestBuilder(failing, nil).BuildVector(context.Background(), &models.Company{Name: "X"})
	assert.ErrorIs(t, err, models.ErrEmbeddingFailure)

	nan := &models.Company{Name: "Y", EBITDAMargin: models.Float(math.NaN())}
	_, err = newTestBuilder(&countingEmbedder{}, nil).BuildVector(context.Background(), nan)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	inf := &countingEmbedder{fn: func(string) ([]float64, error) {
		return []float64{math.Inf(1)}, nil
	}}
	store := newMemStore()
	_, err = newTestBuilder(inf, store).BuildVector(context.Background(), &models.Company{Name: "Z"})
	assert.ErrorIs(t, err, models.ErrEmbeddingFailure)
	assert.Equal(t, 0, store.sets, "invalid vectors must not be cached")
}

// --- PrepareVectors ---

func TestPrepareVectors_DedupesAndSwallowsFailures(t *testing.T) {
	e := &countingEmbedder{fn: func(text string) ([]float64, error) {
		if strings.Contains(text, "broken") {
			return nil, errors.New("provider down")
		}
		return []float64{float64(len(text)), 1}, nil
	}}
	b := newTestBuilder(e, newMemStore())

	a1 := &models.Company{Name: "Alpha", Description: "alpha business"}
	a2 := &models.Company{Name: " ALPHA ", Description: "alpha business"}
	beta := &models.Company{Name: "Beta", Description: "beta business"}
	bad := &models.Company{Name: "Gamma", Description: "broken feed"}

	report, err := b.PrepareVectors(context.Background(), models.PeerSet{a1, a2, beta, bad, nil})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Unique)
	assert.Equal(t, 2, report.Ready)
	assert.Equal(t, []string{"Gamma"}, report.Failed)
	assert.Equal(t, int32(3), e.calls.Load())

	assert.NotEmpty(t, a1.EmbeddingVector)
	assert.Equal(t, a1.EmbeddingVector, a2.EmbeddingVector)
	assert.NotEmpty(t, beta.EmbeddingVector)
	assert.Nil(t, bad.EmbeddingVector)
}

func TestPrepareVectors_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	e := llm.EmbedderFunc(func(ctx context.Context, text string) ([]float64, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return []float64{1, 2}, nil
	})
	b := newTestBuilder(e, nil)
	b.Workers = 3

	var set models.PeerSet
	for i := 0; i < 20; i++ {
		set = append(set, &models.Company{Name: string(rune('a'+i)) + " corp"})
	}
	report, err := b.PrepareVectors(context.Background(), set)
	require.NoError(t, err)
	assert.Equal(t, 20, report.Ready)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestPrepareVectors_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := newTestBuilder(&countingEmbedder{}, nil)
	report, err := b.PrepareVectors(ctx, models.PeerSet{{Name: "A"}, {Name: "B"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, report.Ready)
}

// --- Rank ---

func TestRank(t *testing.T) {
	target := []float64{1, 0}
	set := models.PeerSet{
		{Name: "Self", EmbeddingVector: []float64{1, 0}},
		{Name: "Close", EmbeddingVector: []float64{0.9, 0.1}},
		{Name: "Far", EmbeddingVector: []float64{0, 1}},
		{Name: "Opposite", EmbeddingVector: []float64{-1, 0}},
		{Name: "NoVector"},
		{Name: "NaN", EmbeddingVector: []float64{math.NaN(), 1}},
		{Name: "WrongDim", EmbeddingVector: []float64{1, 0, 0}},
		{Name: "TieA", EmbeddingVector: []float64{0.5, 0.5}},
		{Name: "TieB", EmbeddingVector: []float64{0.5, 0.5}},
	}

	got, err := Rank(target, set, RankOptions{TargetName: " self "})
	require.NoError(t, err)

	var names []string
	for _, m := range got {
		names = append(names, m.Company.Name)
	}
	// Opposite scores -1, below the default threshold of 0
	assert.Equal(t, []string{"Close", "TieA", "TieB", "Far"}, names)

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Similarity, got[i].Similarity)
	}
}

func TestRank_TopKAndThreshold(t *testing.T) {
	target := []float64{1, 0}
	set := models.PeerSet{
		{Name: "A", EmbeddingVector: []float64{1, 0.1}},
		{Name: "B", EmbeddingVector: []float64{1, 0.5}},
		{Name: "C", EmbeddingVector: []float64{0, 1}},
	}

	got, err := Rank(target, set, RankOptions{TopK: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Company.Name)

	got, err = Rank(target, set, RankOptions{MinSimilarity: 0.5})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = Rank(target, set, RankOptions{MinSimilarity: 0.9999})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRank_InvalidTarget(t *testing.T) {
	_, err := Rank(nil, nil, RankOptions{})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
