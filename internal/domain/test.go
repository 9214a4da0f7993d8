package domain

import "sort"

// Test represents a single runnable test case
type Test struct {
	ID     string `json:"id"`     // Opaque test identifier, "<file>::<method>"
	Group  string `json:"group"`  // Group (class) the test belongs to
	Method string `json:"method"` // Test method name
	File   string `json:"file"`   // Path to the file declaring the test
}

// Collection is an ordered set of tests. It is never mutated once built;
// every filtering operation returns a new Collection.
type Collection struct {
	tests []Test
}

// NewCollection creates a Collection holding a copy of tests
func NewCollection(tests ...Test) Collection {
	cp := make([]Test, len(tests))
	copy(cp, tests)
	return Collection{tests: cp}
}

// Tests returns a copy of the tests in order
func (c Collection) Tests() []Test {
	cp := make([]Test, len(c.tests))
	copy(cp, c.tests)
	return cp
}

// Len returns the number of tests
func (c Collection) Len() int {
	return len(c.tests)
}

// Filter returns the tests matching keep, preserving relative order
func (c Collection) Filter(keep func(Test) bool) Collection {
	var out []Test
	for _, t := range c.tests {
		if keep(t) {
			out = append(out, t)
		}
	}
	return Collection{tests: out}
}

// Groups returns the set of groups present in the collection
func (c Collection) Groups() GroupSet {
	groups := NewGroupSet()
	for _, t := range c.tests {
		groups.Add(t.Group)
	}
	return groups
}

// GroupSet is a set of test group identifiers
type GroupSet map[string]struct{}

// NewGroupSet creates a GroupSet containing groups
func NewGroupSet(groups ...string) GroupSet {
	s := make(GroupSet, len(groups))
	for _, g := range groups {
		s.Add(g)
	}
	return s
}

// Add inserts group into the set
func (s GroupSet) Add(group string) {
	s[group] = struct{}{}
}

// Has reports whether group is in the set
func (s GroupSet) Has(group string) bool {
	_, ok := s[group]
	return ok
}

// Len returns the number of groups
func (s GroupSet) Len() int {
	return len(s)
}

// Sorted returns the groups in lexical order
func (s GroupSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for g := range s {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy of the set
func (s GroupSet) Clone() GroupSet {
	cp := make(GroupSet, len(s))
	for g := range s {
		cp[g] = struct{}{}
	}
	return cp
}
