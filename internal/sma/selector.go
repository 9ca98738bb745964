package sma

import "strings"

// Selector decides which channels of a value list are averaged.
// An empty selector selects every channel.
type Selector struct {
	names []string
}

// NewSelector copies names into a new Selector.
func NewSelector(names []string) Selector {
	return Selector{names: append([]string(nil), names...)}
}

// IsSelected reports whether name matches an entry of the allow-list, ignoring case.
func (s Selector) IsSelected(name string) bool {
	if len(s.names) == 0 {
		return true
	}
	for _, n := range s.names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// Names returns a copy of the allow-list.
func (s Selector) Names() []string {
	return append([]string(nil), s.names...)
}
