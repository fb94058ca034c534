package research

import (
	"context"
	"time"
)

// Research techniques. Closed set; selection happens by configuration
// lookup in the registry, not by type hierarchy.
const (
	TechniqueDeepResearch = "deep_research"
	TechniqueQuickSearch  = "quick_search"
	TechniqueSynthesis    = "synthesis"
)

func ValidTechnique(name string) bool {
	switch name {
	case TechniqueDeepResearch, TechniqueQuickSearch, TechniqueSynthesis:
		return true
	}
	return false
}

// SourceFinding is one cited source as reported by a provider. Scores are
// normalized to [0,1] before persistence.
type SourceFinding struct {
	URL             string
	Title           string
	DomainAuthority float64
	PublishedAt     *time.Time
	Relevance       float64
}

// Result is the normalized output of any research technique.
type Result struct {
	Summary        string
	KeyFacts       []string
	Contradictions []string
	Sources        []SourceFinding
}

// PollStatus reports the state of an in-flight multi-step interaction.
// Err is a provider-reported terminal failure, distinct from transport
// errors which are returned as ExternalServiceError.
type PollStatus struct {
	Done   bool
	Err    string
	Result *Result
}

// Provider executes a single-call research technique.
type Provider interface {
	Name() string
	Execute(ctx context.Context, query string) (*Result, error)
}

// MultiStepProvider additionally supports the create-then-poll protocol for
// long-running external jobs. The interaction reference it returns must be
// durable enough to resume polling after a crash.
type MultiStepProvider interface {
	Provider
	CreateInteraction(ctx context.Context, query string) (string, error)
	PollInteraction(ctx context.Context, ref string) (*PollStatus, error)
}

// Registry maps techniques to configured providers. A technique whose
// provider has no credential is simply absent.
type Registry struct {
	providers map[string]Provider
	byProv    map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		providers: map[string]Provider{},
		byProv:    map[string]string{},
	}
}

func (r *Registry) Register(technique string, p Provider) {
	if r == nil || p == nil || !ValidTechnique(technique) {
		return
	}
	r.providers[technique] = p
	r.byProv[technique] = p.Name()
}

// Provider resolves a technique to its configured provider. Unknown
// technique names are DataErrors; known techniques without a registered
// provider are ConfigurationErrors.
func (r *Registry) Provider(technique string) (Provider, error) {
	if !ValidTechnique(technique) {
		return nil, &DataError{Msg: "unknown research technique: " + technique}
	}
	if r == nil {
		return nil, &ConfigurationError{Technique: technique, Provider: providerFor(technique)}
	}
	p, ok := r.providers[technique]
	if !ok || p == nil {
		return nil, &ConfigurationError{Technique: technique, Provider: providerFor(technique)}
	}
	return p, nil
}

func providerFor(technique string) string {
	switch technique {
	case TechniqueDeepResearch, TechniqueQuickSearch:
		return "openai"
	case TechniqueSynthesis:
		return "anthropic"
	}
	return "unknown"
}
