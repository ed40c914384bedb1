package game

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
)

// Float reads a numeric param. JSON numbers arrive as float64, strings are
// accepted for clients that quote numbers.
func (p Params) Float(key string) (float64, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return 0, false
}

// Int reads an integral param
func (p Params) Int(key string) (int, bool) {
	f, ok := p.Float(key)
	if !ok || f != math.Trunc(f) || math.Abs(f) > 1<<31 {
		return 0, false
	}
	return int(f), true
}

// Text reads a string param
func (p Params) Text(key string) (string, bool) {
	s, ok := p[key].(string)
	return s, ok
}

// Ints reads a list of integers
func (p Params) Ints(key string) ([]int, bool) {
	switch list := p[key].(type) {
	case []int:
		out := make([]int, len(list))
		copy(out, list)
		return out, true
	case []any:
		out := make([]int, 0, len(list))
		for _, v := range list {
			n, ok := Params{"v": v}.Int("v")
			if !ok {
				return nil, false
			}
			out = append(out, n)
		}
		return out, true
	}
	return nil, false
}

// distinctInRange reports whether values are unique and within [lo, hi]
func distinctInRange(values []int, lo, hi int) bool {
	seen := make(map[int]bool, len(values))
	for _, v := range values {
		if v < lo || v > hi || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}

func sortedCopy(values []int) []int {
	out := make([]int, len(values))
	copy(out, values)
	sort.Ints(out)
	return out
}

// pickFrom removes len(floats) items from pool by sequential selection:
// the i-th float picks floor(f * remaining) of what is left.
func pickFrom(pool []int, floats []float64) []int {
	remaining := make([]int, len(pool))
	copy(remaining, pool)

	picked := make([]int, 0, len(floats))
	for _, f := range floats {
		idx := int(f * float64(len(remaining)))
		if idx >= len(remaining) {
			idx = len(remaining) - 1
		}
		picked = append(picked, remaining[idx])
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	return picked
}

func seq(lo, hi int) []int {
	out := make([]int, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, i)
	}
	return out
}
