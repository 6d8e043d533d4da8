// internal/dispatch/guard.go
package dispatch

import "sync"

// Guard is the process-wide "campaign is active" registry. External
// idle-timeout logic (session auto-logout lives outside this engine)
// consults HasActive before tearing channels down.
type Guard struct {
	mu     sync.Mutex
	active map[int]struct{}
}

func NewGuard() *Guard {
	return &Guard{active: make(map[int]struct{})}
}

func (g *Guard) Register(campaignID int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active[campaignID] = struct{}{}
}

func (g *Guard) Release(campaignID int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, campaignID)
}

func (g *Guard) HasActive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active) > 0
}
