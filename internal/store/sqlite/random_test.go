package sqlite

import (
	"sort"
	"testing"
)

func TestRandomKeyDeterministic(t *testing.T) {
	for rowid := int64(1); rowid <= 100; rowid++ {
		if randomKey(rowid, 42) != randomKey(rowid, 42) {
			t.Fatalf("randomKey not deterministic at rowid %d", rowid)
		}
	}
}

func TestRandomKeySeedsDiffer(t *testing.T) {
	rowids := []int64{1, 2, 3, 4, 5, 6, 7, 8}

	order := func(seed int64) []int64 {
		out := append([]int64(nil), rowids...)
		sort.Slice(out, func(i, j int) bool {
			ki, kj := randomKey(out[i], seed), randomKey(out[j], seed)
			if ki != kj {
				return ki < kj
			}
			return out[i] < out[j]
		})
		return out
	}

	a := order(42)
	b := order(43)
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("expected different seeds to produce different orders")
	}
}

func TestNormalizeSeed(t *testing.T) {
	if got := normalizeSeed(-1); got < 0 || got >= randomModulus {
		t.Errorf("normalizeSeed(-1) out of range: %d", got)
	}
	if got := normalizeSeed(randomModulus + 7); got != 7 {
		t.Errorf("expected 7, got %d", got)
	}
	if got := normalizeSeed(42); got != 42 {
		t.Errorf("small seeds pass through, got %d", got)
	}
}
