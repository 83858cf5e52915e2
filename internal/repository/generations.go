package repository

import "sync"

// generations orders local mutation writes against refreshes that fetched
// before them. Every mutation bumps the counter of the scopes it wrote; a
// refresh only applies its result if the counter it saw before fetching is
// unchanged, and it applies it under the same lock so no mutation commits in
// between.
type generations struct {
	mu     sync.Mutex
	total  uint64
	scopes map[uint]uint64
}

func newGenerations() *generations {
	return &generations{scopes: make(map[uint]uint64)}
}

func (g *generations) scope(scope uint) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scopes[scope]
}

func (g *generations) all() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.total
}

// commit runs a mutation's local write. write returns the scopes it touched;
// they are bumped even when write fails, since part of it may have landed.
func (g *generations) commit(write func() ([]uint, error)) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	touched, err := write()
	g.total++
	for _, s := range touched {
		g.scopes[s]++
	}
	return err
}

// applyScope runs apply unless scope was written since seen.
func (g *generations) applyScope(scope uint, seen uint64, apply func() error) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.scopes[scope] != seen {
		return false, nil
	}
	return true, apply()
}

// applyAll runs apply unless anything was written since seen.
func (g *generations) applyAll(seen uint64, apply func() error) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.total != seen {
		return false, nil
	}
	return true, apply()
}
