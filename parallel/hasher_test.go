package parallel

import "crypto/sha256"
import "testing"

// hasher test
func TestHasher(t *testing.T) {
	var values = make([][32]byte, 101)
	for i := range values {
		values[i] = sha256.Sum256([]byte{byte(i), byte(i >> 8)})
	}

	var want = sha256.New()
	for i := range values {
		want.Write(values[i][:])
	}

	h := NewHasher(len(values))
	ForEach(len(values), 8, func(i int) {
		h.MustPutHash(i, values[i])
	})
	got := h.Sum()
	if string(got[:]) != string(want.Sum(nil)) {
		t.Errorf("hasher bad hash: %x", got)
	}
}

func TestHasherDuplicate(t *testing.T) {
	h := NewHasher(2)
	h.MustPutHash(1, [32]byte{1})
	defer func() {
		if recover() == nil {
			t.Errorf("duplicate write did not panic")
		}
	}()
	h.MustPutHash(1, [32]byte{1})
}
