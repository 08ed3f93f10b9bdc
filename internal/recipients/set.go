package recipients

import "strings"

// Set is a duplicate-free collection of email addresses. Addresses compare
// case-insensitively; the first spelling seen is kept.
type Set struct {
	items []string
	index map[string]struct{}
}

func NewSet(emails ...string) Set {
	var s Set
	s.Add(emails...)
	return s
}

func key(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Add ignores blank addresses.
func (s *Set) Add(emails ...string) {
	for _, e := range emails {
		k := key(e)
		if k == "" {
			continue
		}
		if s.index == nil {
			s.index = map[string]struct{}{}
		}
		if _, ok := s.index[k]; ok {
			continue
		}
		s.index[k] = struct{}{}
		s.items = append(s.items, strings.TrimSpace(e))
	}
}

func (s Set) Contains(email string) bool {
	_, ok := s.index[key(email)]
	return ok
}

func (s Set) Len() int { return len(s.items) }

// Without returns the addresses of s that are not in other.
func (s Set) Without(other Set) Set {
	var out Set
	for _, e := range s.items {
		if !other.Contains(e) {
			out.Add(e)
		}
	}
	return out
}

// Slice returns a copy in insertion order.
func (s Set) Slice() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}
