package scoring

import (
	"encoding/json"
	"fmt"
	"math"
)

// RiskRange is an interval with independently inclusive or exclusive bounds.
type RiskRange struct {
	Min          float64 `koanf:"min" json:"min" yaml:"min"`
	Max          float64 `koanf:"max" json:"max" yaml:"max"`
	MinExclusive bool    `koanf:"min_exclusive" json:"min_exclusive" yaml:"min_exclusive"`
	MaxExclusive bool    `koanf:"max_exclusive" json:"max_exclusive" yaml:"max_exclusive"`
}

type riskRangeJSON struct {
	Min          *float64 `json:"min"`
	Max          *float64 `json:"max"`
	MinExclusive bool     `json:"min_exclusive"`
	MaxExclusive bool     `json:"max_exclusive"`
}

// MarshalJSON writes an unbounded end (-Inf min, +Inf max) as null.
func (r RiskRange) MarshalJSON() ([]byte, error) {
	out := riskRangeJSON{MinExclusive: r.MinExclusive, MaxExclusive: r.MaxExclusive}
	if !math.IsInf(r.Min, -1) {
		out.Min = &r.Min
	}
	if !math.IsInf(r.Max, 1) {
		out.Max = &r.Max
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a null min as -Inf and a null max as +Inf. Absent
// bounds stay zero.
func (r *RiskRange) UnmarshalJSON(b []byte) error {
	var in struct {
		Min          json.RawMessage `json:"min"`
		Max          json.RawMessage `json:"max"`
		MinExclusive bool            `json:"min_exclusive"`
		MaxExclusive bool            `json:"max_exclusive"`
	}
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	out := RiskRange{MinExclusive: in.MinExclusive, MaxExclusive: in.MaxExclusive}
	if err := decodeBound(in.Min, math.Inf(-1), &out.Min); err != nil {
		return fmt.Errorf("min: %w", err)
	}
	if err := decodeBound(in.Max, math.Inf(1), &out.Max); err != nil {
		return fmt.Errorf("max: %w", err)
	}
	*r = out
	return nil
}

func decodeBound(raw json.RawMessage, unbounded float64, dst *float64) error {
	switch {
	case len(raw) == 0:
		return nil
	case string(raw) == "null":
		*dst = unbounded
		return nil
	default:
		return json.Unmarshal(raw, dst)
	}
}

// Contains reports whether v lies within both bounds of r.
func (r RiskRange) Contains(v float64) bool {
	lower := v >= r.Min
	if r.MinExclusive {
		lower = v > r.Min
	}
	upper := v <= r.Max
	if r.MaxExclusive {
		upper = v < r.Max
	}
	return lower && upper
}

// Overlaps reports whether some value is contained in both r and o.
func (r RiskRange) Overlaps(o RiskRange) bool {
	lo, loExcl := r.Min, r.MinExclusive
	switch {
	case o.Min > lo:
		lo, loExcl = o.Min, o.MinExclusive
	case o.Min == lo:
		loExcl = loExcl || o.MinExclusive
	}
	hi, hiExcl := r.Max, r.MaxExclusive
	switch {
	case o.Max < hi:
		hi, hiExcl = o.Max, o.MaxExclusive
	case o.Max == hi:
		hiExcl = hiExcl || o.MaxExclusive
	}
	if lo < hi {
		return true
	}
	return lo == hi && !loExcl && !hiExcl
}

// String renders r in interval notation, e.g. "[0, 55)".
func (r RiskRange) String() string {
	open, closing := "[", "]"
	if r.MinExclusive {
		open = "("
	}
	if r.MaxExclusive {
		closing = ")"
	}
	return fmt.Sprintf("%s%g, %g%s", open, r.Min, r.Max, closing)
}

func (r RiskRange) empty() bool {
	if r.Min > r.Max {
		return true
	}
	return r.Min == r.Max && (r.MinExclusive || r.MaxExclusive)
}

// Ranged pairs a range with the payload it selects.
type Ranged[T any] struct {
	Range RiskRange
	Value T
}

// FirstMatch returns the payload of the first entry, in order, whose range
// contains v.
func FirstMatch[T any](entries []Ranged[T], v float64) (T, bool) {
	for _, e := range entries {
		if e.Range.Contains(v) {
			return e.Value, true
		}
	}
	var zero T
	return zero, false
}

// AnyContains reports whether any of ranges contains v.
func AnyContains(ranges []RiskRange, v float64) bool {
	for _, r := range ranges {
		if r.Contains(v) {
			return true
		}
	}
	return false
}

// firstOverlap returns the indexes of the first pair of overlapping ranges.
func firstOverlap[T any](entries []Ranged[T]) (int, int, bool) {
	for i := range entries {
		for j := i + 1; j < len(entries); j++ {
			if entries[i].Range.Overlaps(entries[j].Range) {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}
