package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"

	"peer_valuation/pkg/core/llm"
)

// Provider names.
const (
	ProviderGemini = "gemini"
	ProviderQwen   = "qwen"
	ProviderHash   = "hash"
)

type Config struct {
	ActiveProvider string                    `yaml:"active_provider" json:"active_provider"`
	Providers      map[string]ProviderConfig `yaml:"providers" json:"providers"`
}

type ProviderConfig struct {
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
}

// Manager owns the embedding providers and routes Embed calls to the active one.
// The active provider can be switched at runtime.
type Manager struct {
	mu        sync.RWMutex
	active    string
	providers map[string]llm.Embedder
	logger    arbor.ILogger
}

var _ llm.Embedder = (*Manager)(nil)

func NewManager(config Config, logger arbor.ILogger) *Manager {
	gemini := config.Providers[ProviderGemini]
	qwen := config.Providers[ProviderQwen]
	hash := config.Providers[ProviderHash]
	if logger == nil {
		logger = arbor.NewLogger()
	}

	m := &Manager{
		active: config.ActiveProvider,
		providers: map[string]llm.Embedder{
			ProviderGemini: &llm.GeminiEmbedder{Model: gemini.Model, Dimensions: int32(gemini.Dimensions)},
			ProviderQwen:   &llm.QwenEmbedder{Model: qwen.Model},
			ProviderHash:   llm.HashEmbedder{Dimensions: hash.Dimensions},
		},
		logger: logger,
	}
	if _, ok := m.providers[m.active]; !ok {
		m.active = ProviderHash
	}
	return m
}

// Register adds or replaces a named provider.
func (m *Manager) Register(name string, e llm.Embedder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[name] = e
}

// GetProviderByName retrieves a provider instance by its name (e.g. "gemini").
func (m *Manager) GetProviderByName(name string) llm.Embedder {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.providers[name]
}

// Embed delegates to the active provider.
func (m *Manager) Embed(ctx context.Context, text string) ([]float64, error) {
	return m.Pin().Embed(ctx, text)
}

// Pin returns the active provider. Later switches do not affect it.
func (m *Manager) Pin() llm.Embedder {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return namedEmbedder{name: m.active, Embedder: m.providers[m.active]}
}

// Space names the vector space of the active provider.
func (m *Manager) Space() string {
	return llm.SpaceOf(m.Pin())
}

// namedEmbedder prefixes the provider's space with its registered name, so two
// registrations of the same embedder type never share cached vectors.
type namedEmbedder struct {
	name string
	llm.Embedder
}

func (n namedEmbedder) Space() string {
	return n.name + ":" + llm.SpaceOf(n.Embedder)
}

func (m *Manager) SetGlobalProvider(newProvider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[newProvider]; !ok {
		return fmt.Errorf("provider %s not found", newProvider)
	}
	m.active = newProvider
	m.logger.Info().Str("provider", newProvider).Msg("Embedding provider switched")
	return nil
}

func (m *Manager) GetActiveProvider() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Available lists registered provider names in sorted order.
func (m *Manager) Available() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
