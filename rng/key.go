package rng

import "errors"
import "fmt"
import "math/rand/v2"
import "sync/atomic"

import "github.com/neurlang/flowmc/hash"

// ErrKeyReused is the panic value when a consumed key is used again.
var ErrKeyReused = errors.New("rng: key already consumed")

// ErrKeyEmpty is the panic value when the zero Key is used.
var ErrKeyEmpty = errors.New("rng: key not initialized")

const (
	saltSeed0 = 0x243f6a8885a308d3
	saltSeed1 = 0x13198a2e03707344
	saltSplit = 0xa4093822299f31d0
)

// Key is a single-use random key. Copies of a key share its consumed flag.
type Key struct {
	s0, s1 uint64
	spent  *atomic.Bool
}

// New creates the root key for seed.
func New(seed uint64) Key {
	return fresh(hash.Hash(seed, saltSeed0), hash.Hash(seed, saltSeed1))
}

func fresh(s0, s1 uint64) Key {
	return Key{s0: s0, s1: s1, spent: new(atomic.Bool)}
}

func (k Key) consume() {
	if k.spent == nil {
		panic(ErrKeyEmpty)
	}
	if k.spent.Swap(true) {
		panic(ErrKeyReused)
	}
}

// Spent reports whether the key was already consumed.
func (k Key) Spent() bool {
	return k.spent != nil && k.spent.Load()
}

// Split consumes k and returns two independent keys.
func (k Key) Split() (Key, Key) {
	keys := k.SplitN(2)
	return keys[0], keys[1]
}

// SplitN consumes k and returns n independent keys.
func (k Key) SplitN(n int) []Key {
	k.consume()
	var out = make([]Key, n)
	// the split width takes part in every child, as a different n is a different stream
	var s0 = k.s0 ^ hash.Hash(uint64(n), saltSplit)
	for i := range out {
		a, b := hash.Pair(s0, k.s1, saltSplit+uint64(i))
		out[i] = fresh(a, b)
	}
	return out
}

// Rand consumes k and returns a generator seeded from it.
func (k Key) Rand() *rand.Rand {
	k.consume()
	return rand.New(rand.NewPCG(k.s0, k.s1))
}

// Next splits k into a carried key and a generator for one sampling call.
func (k Key) Next() (Key, *rand.Rand) {
	carry, use := k.Split()
	return carry, use.Rand()
}

func (k Key) String() string {
	return fmt.Sprintf("%016x%016x", k.s0, k.s1)
}

// SplitAll splits every key in keys, returning the carried and the used halves.
func SplitAll(keys []Key) (carry []Key, use []Key) {
	carry = make([]Key, len(keys))
	use = make([]Key, len(keys))
	for i, k := range keys {
		carry[i], use[i] = k.Split()
	}
	return
}
