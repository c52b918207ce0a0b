package reconciler

// PrecedenceCounter hands out rule precedences starting at 1 while skipping
// values already held by other rules.
type PrecedenceCounter struct {
	used map[int]struct{}
	next int
}

// NewPrecedenceCounter returns a counter that never yields a value in used.
func NewPrecedenceCounter(used map[int]struct{}) *PrecedenceCounter {
	skip := make(map[int]struct{}, len(used))
	for p := range used {
		skip[p] = struct{}{}
	}

	return &PrecedenceCounter{used: skip, next: 1}
}

// Next returns the lowest free precedence above the previously returned one.
func (c *PrecedenceCounter) Next() int {
	for {
		if _, ok := c.used[c.next]; !ok {
			break
		}
		c.next++
	}
	p := c.next
	c.next++

	return p
}
