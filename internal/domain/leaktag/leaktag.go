// Package leaktag holds the closed vocabulary of leak tags and the single
// canonicalization path every tag string takes into or out of the core.
package leaktag

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"unicode"
)

// Tag is a member of the closed leak vocabulary. The zero value None means
// "no tag" and is never persisted as a real label.
type Tag uint8

// Vocabulary. Fundamentals is the reserved fallback for unknown labels.
const (
	None Tag = iota
	Fundamentals
	ChasingDraws
	Overcalling
	Overfolding
	PassivePlay
	Overaggression
	MissedValue
	BadSizing
	Overbluffing
	IgnoringPosition
	LoosePreflop
	TightPreflop
	TiltControl

	tagCount
)

var names = [tagCount]string{
	None:             "",
	Fundamentals:     "fundamentals",
	ChasingDraws:     "chasing_draws",
	Overcalling:      "overcalling",
	Overfolding:      "overfolding",
	PassivePlay:      "passive_play",
	Overaggression:   "overaggression",
	MissedValue:      "missed_value",
	BadSizing:        "bad_sizing",
	Overbluffing:     "overbluffing",
	IgnoringPosition: "ignoring_position",
	LoosePreflop:     "loose_preflop",
	TightPreflop:     "tight_preflop",
	TiltControl:      "tilt_control",
}

var byName = func() map[string]Tag {
	m := make(map[string]Tag, tagCount)
	for t := Fundamentals; t < tagCount; t++ {
		m[names[t]] = t
	}
	return m
}()

// All returns the vocabulary in declaration order, without None.
func All() []Tag {
	out := make([]Tag, 0, tagCount-1)
	for t := Fundamentals; t < tagCount; t++ {
		out = append(out, t)
	}
	return out
}

// String returns the canonical identifier, or "" for None.
func (t Tag) String() string {
	if t >= tagCount {
		return ""
	}
	return names[t]
}

// IsValid reports whether t is a real vocabulary member.
func (t Tag) IsValid() bool { return t > None && t < tagCount }

// Parse looks up an exact canonical identifier.
func Parse(s string) (Tag, bool) {
	t, ok := byName[s]
	return t, ok
}

// Canonicalize normalizes a free-form label: trim, lowercase, turn every run
// of whitespace or hyphens into one underscore, collapse repeated underscores
// and strip them from both ends. It returns "" when nothing is left.
func Canonicalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		if r == '_' || r == '-' || unicode.IsSpace(r) {
			pendingSep = true
			continue
		}
		if pendingSep && b.Len() > 0 {
			b.WriteByte('_')
		}
		pendingSep = false
		b.WriteRune(r)
	}
	return b.String()
}

// Enforce canonicalizes raw and maps it into the vocabulary. Empty input
// yields None; anything else that is not a known tag becomes Fundamentals.
func Enforce(raw string) Tag {
	c := Canonicalize(raw)
	if c == "" {
		return None
	}
	if t, ok := byName[c]; ok {
		return t
	}
	return Fundamentals
}

// OrFundamentals returns t, or Fundamentals when t is None.
func OrFundamentals(t Tag) Tag {
	if !t.IsValid() {
		return Fundamentals
	}
	return t
}

// MarshalText implements encoding.TextMarshaler.
func (t Tag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Decoding never fails;
// unknown labels are enforced like any other boundary input.
func (t *Tag) UnmarshalText(text []byte) error {
	*t = Enforce(string(text))
	return nil
}

// Value implements driver.Valuer. None is stored as NULL.
func (t Tag) Value() (driver.Value, error) {
	if !t.IsValid() {
		return nil, nil
	}
	return t.String(), nil
}

// Scan implements sql.Scanner.
func (t *Tag) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = None
	case string:
		*t = Enforce(v)
	case []byte:
		*t = Enforce(string(v))
	default:
		return fmt.Errorf("leaktag: cannot scan %T", src)
	}
	return nil
}
