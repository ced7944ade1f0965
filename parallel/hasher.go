package parallel

import (
	"crypto/sha256"
	"hash"
	"sync"
)

// Hasher folds n 32-byte digests, written in any order by concurrent
// workers, into one sha256 sum taken in index order. Digests are streamed
// into the sum as soon as every lower index has arrived.
type Hasher struct {
	mut  sync.Mutex
	sha  hash.Hash
	ate  int
	data [][32]byte
	have []bool
}

// NewHasher creates a hasher for n digests.
func NewHasher(n int) *Hasher {
	return &Hasher{
		sha:  sha256.New(),
		data: make([][32]byte, n),
		have: make([]bool, n),
	}
}

func (h *Hasher) eat() {
	h.sha.Write(h.data[h.ate][:])
	h.ate++
}

// MustPutHash stores the n-th digest. Writing the same n twice panics.
func (h *Hasher) MustPutHash(n int, value [32]byte) {
	h.mut.Lock()
	defer h.mut.Unlock()

	if h.have[n] {
		panic("duplicate hash write")
	}
	h.data[n] = value
	h.have[n] = true

	for h.ate < len(h.data) && h.have[h.ate] {
		h.eat()
	}
}

// Sum returns the digest over all stored values. Missing values hash as zeros.
func (h *Hasher) Sum() (ret [32]byte) {
	h.mut.Lock()
	for h.ate < len(h.data) {
		h.eat()
	}
	copy(ret[:], h.sha.Sum(nil))
	h.mut.Unlock()
	return
}
