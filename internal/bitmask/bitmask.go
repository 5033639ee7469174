// Package bitmask implements the fixed-width lane bitset used throughout
// the SIMT engine to track which of a warp's lanes are active on a path.
package bitmask

import "math/bits"

// Width is the number of lanes a Mask can represent.
const Width = 32

// Mask is a set of lane indices in [0, Width), represented as a bit vector.
type Mask uint32

// Full is the mask with every lane set.
const Full Mask = ^Mask(0)

// Empty is the mask with no lanes set.
const Empty Mask = 0

// Single returns the mask containing only lane i.
func Single(i int) Mask {
	return Mask(1) << uint(i)
}

// FromBits builds a mask directly from a bit pattern.
func FromBits(bits uint32) Mask {
	return Mask(bits)
}

// Test reports whether lane i is set.
func (m Mask) Test(i int) bool {
	return m&Single(i) != 0
}

// Set returns m with lane i set.
func (m Mask) Set(i int) Mask {
	return m | Single(i)
}

// Clear returns m with lane i cleared.
func (m Mask) Clear(i int) Mask {
	return m &^ Single(i)
}

// IsSingleton reports whether exactly one lane is set.
func (m Mask) IsSingleton() bool {
	return m != 0 && m&(m-1) == 0
}

// IsEmpty reports whether no lane is set.
func (m Mask) IsEmpty() bool {
	return m == 0
}

// Union returns the set union of m and other.
func (m Mask) Union(other Mask) Mask {
	return m | other
}

// Intersect returns the set intersection of m and other.
func (m Mask) Intersect(other Mask) Mask {
	return m & other
}

// Complement returns the lanes in [0, n) not set in m.
func (m Mask) Complement(n int) Mask {
	var full Mask
	if n >= Width {
		full = Full
	} else {
		full = Single(n) - 1
	}
	return full &^ m
}

// Popcount returns the number of set lanes.
func (m Mask) Popcount() int {
	return bits.OnesCount32(uint32(m))
}

// Lowest returns the index of the lowest set lane and true, or (0, false)
// if m is empty.
func (m Mask) Lowest() (int, bool) {
	if m == 0 {
		return 0, false
	}
	return bits.TrailingZeros32(uint32(m)), true
}

// Lanes returns the set lane indices in ascending order.
func (m Mask) Lanes() []int {
	lanes := make([]int, 0, m.Popcount())
	for m != 0 {
		i := bits.TrailingZeros32(uint32(m))
		lanes = append(lanes, i)
		m &= m - 1
	}
	return lanes
}

// ForEach calls fn for every set lane in ascending order.
func (m Mask) ForEach(fn func(lane int)) {
	for m != 0 {
		i := bits.TrailingZeros32(uint32(m))
		fn(i)
		m &= m - 1
	}
}
