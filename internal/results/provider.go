// provider.go — Result Store (C10) provider contract: pluggable storage
// backends exposed through capability feature-detection rather than a
// type hierarchy (§4.10, §9).
//
// Grounded on the teacher's internal/pagination limit/offset/sort-
// direction shape, reapplied here to filter/list.
package results

import (
	"github.com/eyupulker/showrun/internal/types"
)

// Capability names a provider-supported operation.
type Capability string

const (
	CapGet    Capability = "get"
	CapStore  Capability = "store"
	CapList   Capability = "list"
	CapDelete Capability = "delete"
	CapFilter Capability = "filter"
)

// ListOptions configures list().
type ListOptions struct {
	Limit   int
	Offset  int
	SortBy  string
	SortDir string // asc|desc
}

// FilterOptions configures filter(): a JMESPath query over one stored
// result's collectibles, plus sort/pagination (§4.10).
type FilterOptions struct {
	Key     string
	JMESPath string
	SortBy  string
	SortDir string
	Limit   int
	Offset  int
}

// FilterResult is filter()'s return shape: the (possibly sorted/paginated)
// query result plus an optional total count before pagination.
type FilterResult struct {
	Data  any
	Total *int
}

// Provider is the Result Store's pluggable backend contract. Callers that
// need an optional capability check Capabilities() and fall back to
// Get()+in-memory filtering when it's absent (§9).
type Provider interface {
	Capabilities() map[Capability]bool
	Store(r types.StoredResult) (types.StoredResult, error)
	Get(key string) (types.StoredResult, bool, error)
	List(opts ListOptions) ([]types.StoredResultSummary, error)
	Delete(key string) (bool, error)
	Filter(opts FilterOptions) (FilterResult, error)
}
