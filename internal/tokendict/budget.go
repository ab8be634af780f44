package tokendict

// Budget is the combined entry cap shared by the token dictionary and the
// path dictionary (spec.md §4.3). When the sum of both dictionaries'
// entries exceeds the limit, every caller clears its cache; correctness
// holds because both dictionaries are write-through.
type Budget struct {
	limit int
	used  int
}

// DefaultCacheSize is the default combined cache bound (spec.md §4.3: "1
// MiB of entries").
const DefaultCacheSize = 1 << 20

// LessMemoryDivisor is applied to DefaultCacheSize under --less-memory
// (spec.md §6, §5).
const LessMemoryDivisor = 100

// NewBudget creates a shared budget with the given entry limit.
func NewBudget(limit int) *Budget {
	if limit <= 0 {
		limit = DefaultCacheSize
	}
	return &Budget{limit: limit}
}

// Add records n new cache entries and reports whether the budget is now
// exceeded.
func (b *Budget) Add(n int) (overBudget bool) {
	b.used += n
	return b.used > b.limit
}

// Reset zeroes the used counter; callers clear their in-memory caches at
// the same time.
func (b *Budget) Reset() {
	b.used = 0
}
