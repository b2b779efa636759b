package publish

import (
	"context"
	"sort"
	"sync"
)

// A fake pusher intended for tests only. It does nothing when "pushing"
// files other than keep track of the keys that have been pushed.

type MockPusher struct {
	mu     sync.Mutex
	pushed map[string]bool
	public map[string]bool
}

func NewMockPusher() *MockPusher {
	return &MockPusher{pushed: map[string]bool{}, public: map[string]bool{}}
}

func (p *MockPusher) Has(ctx context.Context, key string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pushed[key], nil
}

func (p *MockPusher) Push(ctx context.Context, key string, localPath string, public bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed[key] = true
	p.public[key] = public
	return nil
}

// Pushed lists the pushed keys, sorted.
func (p *MockPusher) Pushed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.pushed))
	for k := range p.pushed {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Public reports whether a key was pushed world-readable.
func (p *MockPusher) Public(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.public[key]
}
