// Package lookup implements the bit-flag/status-string translate engine:
// an ordered list of Rules, each either a bit-mask decomposition, an
// exact-value index, or a decimal-digit decomposition.
package lookup

import (
	"fmt"
	"sort"
	"strings"
)

// RuleType selects how a Rule interprets the masked value.
type RuleType int

const (
	BitToString RuleType = iota
	IndexToString
	DecimalsToString
)

// Test selects whether a Map entry fires when its bits are set or clear.
type Test int

const (
	Set Test = iota
	NotSet
)

// Map is one from/to translation entry within a Rule.
type Map struct {
	From uint64
	To   string
	Test Test
}

// Rule is one translation rule within a Lookup.
type Rule struct {
	Name           string
	Type           RuleType
	Trigger        uint64
	Mask           uint64
	DefaultMessage string
	Maps           []Map
}

// Lookup is an ordered list of Rules whose outputs are whitespace-joined
// and concatenated.
type Lookup struct {
	Rules []Rule
}

// Translate runs every rule in order against value and joins their
// non-empty outputs with a single space.
func (l Lookup) Translate(value uint64) string {
	var parts []string
	for _, r := range l.Rules {
		if s := r.translate(value); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func (r Rule) translate(value uint64) string {
	if r.Type == DecimalsToString {
		// Mask is a decimal modulus here (e.g. 99 to keep two digits), not
		// a bitmask: "12 & 99" is meaningless, the original's
		// handleDecimalsToString does "bits % rule.mask".
		return r.translateDecimalsToString(value)
	}

	masked := value & r.Mask
	if r.Trigger != 0 && masked&r.Trigger == 0 {
		return ""
	}
	switch r.Type {
	case BitToString:
		return r.translateBitToString(masked)
	case IndexToString:
		return r.translateIndexToString(masked)
	default:
		return ""
	}
}

func (r Rule) translateBitToString(masked uint64) string {
	var parts []string
	remaining := masked
	for _, m := range r.Maps {
		bitSet := remaining&m.From == m.From && m.From != 0
		match := (m.Test == Set && bitSet) || (m.Test == NotSet && !bitSet && m.From != 0)
		if match {
			parts = append(parts, m.To)
			if m.Test == Set {
				remaining &^= m.From
			}
		}
	}
	if remaining != 0 {
		parts = append(parts, fmt.Sprintf("%s_%X", upperName(r.Name), remaining))
	}
	if len(parts) == 0 && r.DefaultMessage != "" {
		return r.DefaultMessage
	}
	return strings.Join(parts, " ")
}

func (r Rule) translateIndexToString(masked uint64) string {
	for _, m := range r.Maps {
		if m.From == masked {
			return m.To
		}
	}
	if r.DefaultMessage != "" {
		return r.DefaultMessage
	}
	return fmt.Sprintf("%s_%X", upperName(r.Name), masked)
}

func (r Rule) translateDecimalsToString(value uint64) string {
	v := value % r.Mask
	// Sort maps by descending decimal value so the largest denominations
	// are subtracted first (a stable decomposition regardless of
	// declaration order).
	maps := append([]Map{}, r.Maps...)
	sort.Slice(maps, func(i, j int) bool { return maps[i].From > maps[j].From })

	var parts []string
	for _, m := range maps {
		for m.From != 0 && v >= m.From {
			parts = append(parts, m.To)
			v -= m.From
		}
	}
	if len(parts) == 0 && r.DefaultMessage != "" {
		return r.DefaultMessage
	}
	return strings.Join(parts, " ")
}

func upperName(name string) string {
	return strings.ToUpper(name)
}
