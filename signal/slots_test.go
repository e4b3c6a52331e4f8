package signal

import (
	"testing"

	"go.viam.com/test"
)

func TestSlotPoolClaimOrder(t *testing.T) {
	pool := newSlotPool(3)

	slot, owned := pool.claim()
	test.That(t, slot, test.ShouldEqual, 0)
	test.That(t, owned, test.ShouldBeTrue)

	slot, owned = pool.claim()
	test.That(t, slot, test.ShouldEqual, 1)
	test.That(t, owned, test.ShouldBeTrue)

	slot, owned = pool.claim()
	test.That(t, slot, test.ShouldEqual, 2)
	test.That(t, owned, test.ShouldBeTrue)
}

func TestSlotPoolSharesLast(t *testing.T) {
	pool := newSlotPool(2)
	pool.claim()
	pool.claim()

	// Extras pile onto the last slot without owning it.
	for i := 0; i < 3; i++ {
		slot, owned := pool.claim()
		test.That(t, slot, test.ShouldEqual, 1)
		test.That(t, owned, test.ShouldBeFalse)
	}
}

func TestSlotPoolRelease(t *testing.T) {
	pool := newSlotPool(3)
	pool.claim()
	pool.claim()
	pool.claim()

	pool.release(1)
	slot, owned := pool.claim()
	test.That(t, slot, test.ShouldEqual, 1)
	test.That(t, owned, test.ShouldBeTrue)

	// A shared claim does not free anything when its session goes away.
	shared, owned := pool.claim()
	test.That(t, shared, test.ShouldEqual, 2)
	test.That(t, owned, test.ShouldBeFalse)
	slot, owned = pool.claim()
	test.That(t, slot, test.ShouldEqual, 2)
	test.That(t, owned, test.ShouldBeFalse)
}

func TestPeerStateTransitions(t *testing.T) {
	for _, tc := range []struct {
		from PeerState
		to   PeerState
		ok   bool
	}{
		{PeerIdle, PeerOfferReceived, true},
		{PeerIdle, PeerAnswered, false},
		{PeerIdle, PeerConnected, false},
		{PeerIdle, PeerClosed, true},
		{PeerOfferReceived, PeerAnswered, true},
		{PeerOfferReceived, PeerConnected, false},
		{PeerOfferReceived, PeerOfferReceived, false},
		{PeerOfferReceived, PeerClosed, true},
		{PeerAnswered, PeerConnected, true},
		{PeerAnswered, PeerOfferReceived, false},
		{PeerAnswered, PeerClosed, true},
		{PeerConnected, PeerClosed, true},
		{PeerConnected, PeerOfferReceived, false},
		{PeerClosed, PeerClosed, false},
		{PeerClosed, PeerIdle, false},
		{PeerClosed, PeerConnected, false},
	} {
		t.Run(tc.from.String()+"_to_"+tc.to.String(), func(t *testing.T) {
			test.That(t, tc.from.canTransition(tc.to), test.ShouldEqual, tc.ok)
		})
	}
}

func TestPeerStateString(t *testing.T) {
	test.That(t, PeerIdle.String(), test.ShouldEqual, "idle")
	test.That(t, PeerOfferReceived.String(), test.ShouldEqual, "offer_received")
	test.That(t, PeerAnswered.String(), test.ShouldEqual, "answered")
	test.That(t, PeerConnected.String(), test.ShouldEqual, "connected")
	test.That(t, PeerClosed.String(), test.ShouldEqual, "closed")
	test.That(t, PeerState(42).String(), test.ShouldEqual, "unknown")
}
