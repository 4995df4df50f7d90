package playground

import (
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// AuthNonce returns the nonce an authority must sign for its authorization to
// be valid when the transaction carrying it executes.
//
// current is the authority's pending nonce. precedingTxs counts earlier
// transactions or authorization entries from the same authority that will be
// applied first. When the authority also sends the transaction, the protocol
// bumps its nonce before the authorization list is processed, so one more is
// added.
func AuthNonce(current uint64, selfSubmitted bool, precedingTxs uint64) uint64 {
	n := current + precedingTxs
	if selfSubmitted {
		n++
	}
	return n
}

// signerLocks serializes the read-nonce, sign, submit sequence per account.
type signerLocks struct {
	mu    sync.Mutex
	locks map[common.Address]*sync.Mutex
}

// lock acquires the locks of every distinct address in a fixed order and
// returns a function releasing them.
func (s *signerLocks) lock(addrs ...common.Address) func() {
	sorted := make([]common.Address, 0, len(addrs))
	for _, a := range addrs {
		if !slices.Contains(sorted, a) {
			sorted = append(sorted, a)
		}
	}
	slices.SortFunc(sorted, func(a, b common.Address) int { return a.Cmp(b) })

	s.mu.Lock()
	if s.locks == nil {
		s.locks = make(map[common.Address]*sync.Mutex)
	}
	held := make([]*sync.Mutex, len(sorted))
	for i, a := range sorted {
		l, ok := s.locks[a]
		if !ok {
			l = new(sync.Mutex)
			s.locks[a] = l
		}
		held[i] = l
	}
	s.mu.Unlock()

	for _, l := range held {
		l.Lock()
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
