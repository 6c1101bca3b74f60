package upstream

import (
	"context"
	"sync"
	"time"

	"github.com/mirrorapp/mirror-server/internal/domain"
)

// FakeClient is an in-memory Client for tests. Set Entities per type, or
// Err per type to simulate a fetch failure for that type only.
type FakeClient struct {
	mu       sync.Mutex
	Entities map[domain.EntityType][]RawEntity
	Err      map[domain.EntityType]error

	// Calls records every fetch in order, for asserting dependency order.
	Calls []string
}

var _ Client = (*FakeClient)(nil)

// NewFakeClient creates an empty fake.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		Entities: make(map[domain.EntityType][]RawEntity),
		Err:      make(map[domain.EntityType]error),
	}
}

// Set replaces the fake's records for one entity type.
func (f *FakeClient) Set(t domain.EntityType, entities ...RawEntity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Entities[t] = entities
}

// FetchAll implements Client.
func (f *FakeClient) FetchAll(_ context.Context, t domain.EntityType) ([]RawEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "all:"+string(t))
	if err := f.Err[t]; err != nil {
		return nil, wrapError("fetchAll", t, err)
	}
	out := make([]RawEntity, len(f.Entities[t]))
	copy(out, f.Entities[t])
	return out, nil
}

// FetchChangedSince implements Client, filtering by UpdatedAt.
func (f *FakeClient) FetchChangedSince(_ context.Context, t domain.EntityType, since time.Time) ([]RawEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "changed:"+string(t))
	if err := f.Err[t]; err != nil {
		return nil, wrapError("fetchChangedSince", t, err)
	}
	var out []RawEntity
	for _, e := range f.Entities[t] {
		if e.UpdatedAt.After(since) {
			out = append(out, e)
		}
	}
	return out, nil
}
