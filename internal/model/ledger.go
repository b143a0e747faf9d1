package model

import "sort"

// SeenLedger is the set of identities ever observed.
type SeenLedger map[string]struct{}

// NewSeenLedger builds a ledger from a list of identities.
func NewSeenLedger(ids ...string) SeenLedger {
	l := make(SeenLedger, len(ids))
	for _, id := range ids {
		if id != "" {
			l[id] = struct{}{}
		}
	}
	return l
}

// Has reports whether id was seen.
func (l SeenLedger) Has(id string) bool {
	_, ok := l[id]
	return ok
}

// Add records id.
func (l SeenLedger) Add(id string) {
	if id != "" {
		l[id] = struct{}{}
	}
}

// Union returns a new ledger holding every identity of l and ids.
func (l SeenLedger) Union(ids ...string) SeenLedger {
	out := make(SeenLedger, len(l)+len(ids))
	for id := range l {
		out[id] = struct{}{}
	}
	for _, id := range ids {
		out.Add(id)
	}
	return out
}

// Sorted returns the identities in lexical order for stable serialization.
func (l SeenLedger) Sorted() []string {
	out := make([]string, 0, len(l))
	for id := range l {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
