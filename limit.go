package bincode

// SizeLimit meters the bytes produced or consumed by one serialize or
// deserialize call.
type SizeLimit interface {
	// Add charges n bytes. It fails with SizeLimit if the budget cannot
	// cover the whole chunk, and charges nothing in that case.
	Add(n uint64) error

	// Limit reports the remaining budget, if there is one.
	Limit() (uint64, bool)

	// Clone returns an independent copy with the same remaining budget.
	Clone() SizeLimit
}

// Infinite never runs out.
type Infinite struct{}

func (Infinite) Add(uint64) error { return nil }
func (Infinite) Limit() (uint64, bool) { return 0, false }
func (i Infinite) Clone() SizeLimit { return i }

// Bounded allows a fixed number of bytes. Once a chunk is refused the
// instance stays exhausted.
type Bounded struct {
	remaining uint64
	exhausted bool
}

// NewBounded returns a limit with n bytes of budget.
func NewBounded(n uint64) *Bounded {
	return &Bounded{remaining: n}
}

func (b *Bounded) Add(n uint64) error {
	if b.exhausted || b.remaining < n {
		b.exhausted = true
		return &Error{Kind: KindSizeLimit}
	}
	b.remaining -= n
	return nil
}

func (b *Bounded) Limit() (uint64, bool) {
	return b.remaining, true
}

// Exhausted reports whether a chunk has been refused.
func (b *Bounded) Exhausted() bool {
	return b.exhausted
}

func (b *Bounded) Clone() SizeLimit {
	c := *b
	return &c
}

// countSize forwards to another limit and keeps a running total of what
// it accepted.
type countSize struct {
	total uint64
	other SizeLimit
}

func (c *countSize) Add(n uint64) error {
	if err := c.other.Add(n); err != nil {
		return err
	}
	c.total += n
	return nil
}

func (c *countSize) Limit() (uint64, bool) {
	return c.other.Limit()
}

func (c *countSize) Clone() SizeLimit {
	return &countSize{total: c.total, other: c.other.Clone()}
}
