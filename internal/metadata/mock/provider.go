package mock

import (
	"context"
	"sync"

	"github.com/tvstreamcz/tvstreamd/internal/metadata"
)

// Provider implements metadata.Provider over a fixed record table keyed by
// metadata.Query.Key(). Lookups count provider traffic so tests can assert
// on cache behavior.
type Provider struct {
	ProviderName string
	Records      map[string]*metadata.Record

	// Err fails every lookup when set.
	Err error

	mu      sync.Mutex
	lookups int
}

// NewProvider creates an empty mock provider.
func NewProvider(name string) *Provider {
	return &Provider{
		ProviderName: name,
		Records:      make(map[string]*metadata.Record),
	}
}

// Add registers a record under the query's cache key.
func (p *Provider) Add(q metadata.Query, rec *metadata.Record) *Provider {
	p.Records[q.Key()] = rec
	return p
}

// Lookups returns how many lookups reached this provider.
func (p *Provider) Lookups() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lookups
}

func (p *Provider) Name() string { return p.ProviderName }

func (p *Provider) IsConfigured() bool { return true }

func (p *Provider) Lookup(ctx context.Context, q metadata.Query) (*metadata.Record, error) {
	p.mu.Lock()
	p.lookups++
	p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}
	rec, ok := p.Records[q.Key()]
	if !ok || rec == nil {
		return nil, metadata.ErrNotFound
	}
	copied := *rec
	return &copied, nil
}
