package sqlite

// Seeded random ordering. Every row's ordering key is a pure function of
// (rowid, seed): a multiplicative hash whose odd multiplier is derived from
// the seed, folded into 32 bits. Same seed gives the same total order on
// every call and every page; flipping the direction flips both the key
// comparison and the id tie-breaker, so descending is the exact reverse of
// ascending. The multiplier stays odd so the hash permutes the 32-bit
// space, and deriving it from the seed (rather than adding the seed to the
// key) makes even adjacent seeds produce unrelated orders.

const (
	randomMultiplier = 2654435761
	randomModulus    = 1 << 32
)

// randomKeySQL is the ordering-key expression over the aliased entity
// table. The parameter binds the seed-derived multiplier; rowids are small
// enough that the product stays far from int64 overflow.
const randomKeySQL = `(t.rowid * ?) % 4294967296`

// randomMult derives the odd 32-bit multiplier for a seed: the base
// multiplier scaled by the odd-mapped seed. Odd times odd stays odd, so
// the resulting hash still permutes the 32-bit space.
func randomMult(seed int64) int64 {
	m := (uint64(randomMultiplier) * uint64(2*normalizeSeed(seed)+1)) % randomModulus
	return int64(m)
}

// randomKey mirrors randomKeySQL for a given rowid and seed.
func randomKey(rowid, seed int64) int64 {
	k := (uint64(rowid) * uint64(randomMult(seed))) % randomModulus
	return int64(k)
}

// normalizeSeed folds an arbitrary seed into the non-negative 32-bit range.
func normalizeSeed(seed int64) int64 {
	return seed & (randomModulus - 1)
}
