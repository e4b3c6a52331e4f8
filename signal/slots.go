package signal

import "sync"

// slotPool hands out indexes into the planned target list. The first
// unclaimed slot wins; once every slot is claimed, extra connections share
// the last slot without claiming it.
type slotPool struct {
	mu      sync.Mutex
	claimed []bool
}

func newSlotPool(n int) *slotPool {
	return &slotPool{claimed: make([]bool, n)}
}

// claim returns a slot index and whether the caller owns the claim. A
// shared fallback slot is not owned and must not be released.
func (p *slotPool) claim() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, taken := range p.claimed {
		if !taken {
			p.claimed[i] = true
			return i, true
		}
	}
	return len(p.claimed) - 1, false
}

// release frees an owned slot for the next connection.
func (p *slotPool) release(i int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i >= 0 && i < len(p.claimed) {
		p.claimed[i] = false
	}
}

// claimedCount returns how many slots are currently owned.
func (p *slotPool) claimedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	var n int
	for _, taken := range p.claimed {
		if taken {
			n++
		}
	}
	return n
}
