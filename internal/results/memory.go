// memory.go — In-memory Result Store provider, for tests and ephemeral
// use (§4.10).
package results

import (
	"sort"
	"sync"

	"github.com/eyupulker/showrun/internal/errs"
	"github.com/eyupulker/showrun/internal/types"
)

// MemoryProvider is a map-backed Provider. Safe for concurrent use.
type MemoryProvider struct {
	mu   sync.RWMutex
	data map[string]types.StoredResult
}

// NewMemoryProvider constructs an empty MemoryProvider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{data: map[string]types.StoredResult{}}
}

func (p *MemoryProvider) Capabilities() map[Capability]bool {
	return map[Capability]bool{CapGet: true, CapStore: true, CapList: true, CapDelete: true, CapFilter: true}
}

// Store UPSERTs r: on an existing key, version increments; otherwise
// version = 1 (§4.10, §8 round-trip property).
func (p *MemoryProvider) Store(r types.StoredResult) (types.StoredResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.data[r.Key]; ok {
		r.Version = existing.Version + 1
	} else {
		r.Version = 1
	}
	p.data[r.Key] = r
	return r, nil
}

func (p *MemoryProvider) Get(key string) (types.StoredResult, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.data[key]
	return r, ok, nil
}

func (p *MemoryProvider) List(opts ListOptions) ([]types.StoredResultSummary, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]types.StoredResultSummary, 0, len(p.data))
	for _, r := range p.data {
		out = append(out, types.StoredResultSummary{
			Key: r.Key, PackID: r.PackID, ToolName: r.ToolName,
			StoredAt: r.StoredAt, Version: r.Version,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StoredAt.After(out[j].StoredAt) })
	return paginateSummaries(out, opts), nil
}

func paginateSummaries(out []types.StoredResultSummary, opts ListOptions) []types.StoredResultSummary {
	start := opts.Offset
	if start < 0 {
		start = 0
	}
	if start > len(out) {
		start = len(out)
	}
	end := len(out)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return out[start:end]
}

func (p *MemoryProvider) Delete(key string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.data[key]; !ok {
		return false, nil
	}
	delete(p.data, key)
	return true, nil
}

func (p *MemoryProvider) Filter(opts FilterOptions) (FilterResult, error) {
	p.mu.RLock()
	r, ok := p.data[opts.Key]
	p.mu.RUnlock()
	if !ok {
		return FilterResult{}, errs.NewOperationalError("no stored result for key %q", opts.Key)
	}
	return ApplyFilter(r.Collectibles, opts)
}
