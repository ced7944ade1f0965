// Package hash implements the 64-bit mixing function used to derive random keys
package hash

// Hash mixes n with the salt s. For a fixed salt the mapping is a bijection,
// so distinct inputs never collide, while distinct salts give unrelated outputs.
func Hash(n uint64, s uint64) uint64 {
	// mixing stage, mix input with salt using subtraction
	var m = n - s

	// hashing stage, xor shift with odd multipliers (splitmix64 finalizer)
	m ^= m >> 30
	m *= 0xbf58476d1ce4e5b9
	m ^= m >> 27
	m *= 0x94d049bb133111eb
	m ^= m >> 31

	// mixing stage 2, mix input with salt using addition
	m += s

	return m
}

// Pair mixes a two word state with the salt s into a new two word state.
func Pair(s0, s1, s uint64) (uint64, uint64) {
	var a = Hash(s0^s1, s)
	var b = Hash(s1+a, s^0x9e3779b97f4a7c15)
	return a, b
}
