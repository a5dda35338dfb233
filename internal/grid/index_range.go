package grid

import (
	"fmt"
	"math"
)

// IndexRange is a half-open range [Start, End) of collection indices.
// An empty range has Start >= End.
type IndexRange struct {
	Start int32
	End   int32
}

// Widen grows the range by amount on both sides, saturating at 0 and
// [math.MaxInt32]. A negative amount is treated as zero.
func (r IndexRange) Widen(amount int32) IndexRange {
	if amount <= 0 {
		return r
	}

	start := int32(0)
	if r.Start > amount {
		start = r.Start - amount
	}

	end := int32(math.MaxInt32)
	if r.End < math.MaxInt32-amount {
		end = r.End + amount
	}

	return IndexRange{Start: start, End: end}
}

// Contains reports whether i lies in [Start, End).
func (r IndexRange) Contains(i int32) bool {
	return i >= r.Start && i < r.End
}

// Len returns the number of indices in the range, 0 if it is empty.
func (r IndexRange) Len() int32 {
	if r.End <= r.Start {
		return 0
	}

	return r.End - r.Start
}

func (r IndexRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// has is Contains for int indices.
func (r IndexRange) has(i int) bool {
	return i >= int(r.Start) && i < int(r.End)
}

func rangeOf(start, end int) IndexRange {
	return IndexRange{Start: int32(start), End: int32(end)}
}
