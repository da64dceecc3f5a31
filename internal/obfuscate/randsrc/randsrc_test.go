package randsrc

import "testing"

// TestSeededSourceKeyByteDeterministic asserts that two sources built
// from the same seed produce identical KeyByte sequences.
func TestSeededSourceKeyByteDeterministic(t *testing.T) {
	a := NewSeededSource(1234)
	b := NewSeededSource(1234)
	for i := 0; i < 32; i++ {
		ka, kb := a.KeyByte(), b.KeyByte()
		if ka != kb {
			t.Fatalf("byte %d: got %#x and %#x from equally-seeded sources", i, ka, kb)
		}
	}
}

func TestSeededSourceKeyByteNeverZero(t *testing.T) {
	s := NewSeededSource(999)
	for i := 0; i < 1000; i++ {
		if s.KeyByte() == 0 {
			t.Fatal("expected KeyByte to never return 0: a zero XOR key leaves plaintext unchanged")
		}
	}
}

func TestSeededSourceDifferentSeedsDiverge(t *testing.T) {
	a := NewSeededSource(1)
	b := NewSeededSource(2)
	same := true
	for i := 0; i < 16; i++ {
		if a.KeyByte() != b.KeyByte() {
			same = false
		}
	}
	if same {
		t.Fatal("expected different seeds to produce different key byte sequences")
	}
}

// TestSeededSourceShuffleDeterministic asserts the same fixed-seed
// determinism property for Shuffle, which the flattener uses to permute block ids.
func TestSeededSourceShuffleDeterministic(t *testing.T) {
	permOf := func(seed int64) []int {
		s := NewSeededSource(seed)
		ids := make([]int, 10)
		for i := range ids {
			ids[i] = i
		}
		s.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
		return ids
	}

	a := permOf(42)
	b := permOf(42)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("index %d: permutations diverged under the same seed: %v vs %v", i, a, b)
		}
	}
}

func TestSeededSourceShuffleIsAPermutation(t *testing.T) {
	s := NewSeededSource(7)
	ids := make([]int, 20)
	for i := range ids {
		ids[i] = i
	}
	s.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	seen := make(map[int]bool)
	for _, v := range ids {
		if v < 0 || v >= 20 || seen[v] {
			t.Fatalf("expected a permutation of [0,20), got %v", ids)
		}
		seen[v] = true
	}
}

func TestCryptoSourceKeyByteNeverZero(t *testing.T) {
	var s CryptoSource
	for i := 0; i < 64; i++ {
		if s.KeyByte() == 0 {
			t.Fatal("expected CryptoSource.KeyByte to never return 0")
		}
	}
}
