package importer

import "strings"

// Index answers key lookups against the active roster snapshot taken at the
// start of an attempt.
type Index struct {
	byEmail   map[string]RosterEntry
	byShortID map[string]RosterEntry
	highest   int
}

// BuildIndex indexes the active entries of roster. highest is the largest
// numeric matricula across the whole roster, inactive employees included.
func BuildIndex(roster []RosterEntry, highest int) *Index {
	idx := &Index{
		byEmail:   make(map[string]RosterEntry, len(roster)),
		byShortID: make(map[string]RosterEntry, len(roster)),
		highest:   highest,
	}
	for _, entry := range roster {
		if !entry.Active() {
			continue
		}
		if email := strings.ToLower(strings.TrimSpace(entry.Email)); email != "" {
			idx.byEmail[email] = entry
		}
		if entry.ShortID != "" {
			idx.byShortID[entry.ShortID] = entry
			if n, ok := ParseShortID(entry.ShortID); ok && n > idx.highest {
				idx.highest = n
			}
		}
	}
	return idx
}

// LookupByEmail finds the active holder of email, case-insensitively.
func (i *Index) LookupByEmail(email string) (RosterEntry, bool) {
	entry, ok := i.byEmail[strings.ToLower(strings.TrimSpace(email))]
	return entry, ok
}

// LookupByShortID finds the active holder of a matricula.
func (i *Index) LookupByShortID(shortID string) (RosterEntry, bool) {
	entry, ok := i.byShortID[shortID]
	return entry, ok
}

// Highest returns the largest numeric matricula known to the index.
func (i *Index) Highest() int {
	return i.highest
}

func (i *Index) taken(shortID string) bool {
	_, ok := i.byShortID[shortID]
	return ok
}
