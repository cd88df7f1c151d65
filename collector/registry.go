package collector

import (
	"errors"
	"fmt"
	"sort"

	"github.com/briefops/research-agent/emit"
)

// ErrUnknownSource is returned by Registry.Get for unregistered keys.
var ErrUnknownSource = errors.New("unknown source")

// Constructor builds a fresh Collector. Each pipeline execution gets its own
// instance so connections are never shared between runs.
type Constructor func() Collector

// RegistryConfig carries the credentials collectors may need. Empty values
// are allowed; keyless collectors ignore them and keyed collectors refuse
// at Collect time.
type RegistryConfig struct {
	GitHubToken  string
	SerperAPIKey string
	RapidAPIKey  string
}

// Registry maps source keys to collector constructors. It is built once at
// boot and never mutated afterwards; its keys are the canonical source
// identifiers used by the router, fallback policy, and scheduler.
type Registry struct {
	ctors map[string]Constructor
}

// NewRegistry builds the standard registry with all fifteen sources.
func NewRegistry(cfg RegistryConfig, em emit.Emitter) *Registry {
	return &Registry{ctors: map[string]Constructor{
		"news":          func() Collector { return NewGoogleNews(em) },
		"news_rapidapi": func() Collector { return NewRapidAPINews(cfg.RapidAPIKey, em) },
		"weather":       func() Collector { return NewWeather(em) },
		"crypto":        func() Collector { return NewCoinGecko(em) },
		"dex":           func() Collector { return NewDexScreener(em) },
		"reddit":        func() Collector { return NewReddit(em) },
		"github":        func() Collector { return NewGitHub(cfg.GitHubToken, em) },
		"arxiv":         func() Collector { return NewArxiv(em) },
		"stocks":        func() Collector { return NewStocks(em) },
		"wikipedia":     func() Collector { return NewWikipedia(em) },
		"ddg":           func() Collector { return NewDDGWeb(em) },
		"ddg_news":      func() Collector { return NewDDGNews(em) },
		"serper":        func() Collector { return NewSerper(cfg.SerperAPIKey, em) },
		"tmz":           func() Collector { return NewTMZ(em) },
		"cryptonews":    func() Collector { return NewCryptoNews(em) },
	}}
}

// NewRegistryFrom builds a registry over an explicit constructor map. Used
// by tests and embedders that stub out sources.
func NewRegistryFrom(ctors map[string]Constructor) *Registry {
	copied := make(map[string]Constructor, len(ctors))
	for k, v := range ctors {
		copied[k] = v
	}
	return &Registry{ctors: copied}
}

// Get returns a fresh collector for the source key, or ErrUnknownSource.
func (r *Registry) Get(name string) (Collector, error) {
	ctor, ok := r.ctors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownSource, name, r.Sources())
	}
	return ctor(), nil
}

// Has reports whether the source key is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.ctors[name]
	return ok
}

// Sources returns all registered keys in sorted order.
func (r *Registry) Sources() []string {
	keys := make([]string, 0, len(r.ctors))
	for k := range r.ctors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
