package importer

import (
	"fmt"
	"strconv"
)

// Sequence is the matricula generator state threaded through classification.
type Sequence struct {
	Last  int `json:"last"`
	Width int `json:"width"`
}

func (s Sequence) width() int {
	if s.Width <= 0 {
		return DefaultShortIDWidth
	}
	return s.Width
}

func (s Sequence) format(n int) string {
	return fmt.Sprintf("%0*d", s.width(), n)
}

// Classification splits candidates into the three outcomes of an attempt.
type Classification struct {
	Valid     []Candidate `json:"valid"`
	Errors    []RowError  `json:"errors"`
	Conflicts []Conflict  `json:"conflicts"`
	Sequence  Sequence    `json:"sequence"`
}

// Classify walks candidates in file order, rejecting in-file duplicates and
// pairing candidates with the active employees holding their keys. Candidates
// without a matricula that survive get one synthesized from seq. The result
// depends only on the arguments.
func Classify(candidates []Candidate, idx *Index, seq Sequence) Classification {
	if seq.Last < idx.Highest() {
		seq.Last = idx.Highest()
	}

	explicit := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if c.ShortID != "" {
			explicit[c.ShortID] = struct{}{}
		}
	}

	out := Classification{
		Valid:     make([]Candidate, 0, len(candidates)),
		Errors:    make([]RowError, 0),
		Conflicts: make([]Conflict, 0),
	}
	seenEmail := make(map[string]struct{}, len(candidates))
	seenShortID := make(map[string]struct{}, len(candidates))

	for _, c := range candidates {
		if _, dup := seenEmail[c.Email]; dup {
			out.Errors = append(out.Errors, rowError(c.Row, c.Source, ReasonDuplicateEmail, "email duplicated within the file"))
			continue
		}
		seenEmail[c.Email] = struct{}{}

		if c.ShortID != "" {
			if _, dup := seenShortID[c.ShortID]; dup {
				out.Errors = append(out.Errors, rowError(c.Row, c.Source, ReasonDuplicateShortID, "matricula duplicated within the file"))
				continue
			}
			seenShortID[c.ShortID] = struct{}{}
		}

		var (
			existing RosterEntry
			matched  KeyKind
		)
		if c.ShortID != "" {
			if entry, ok := idx.LookupByShortID(c.ShortID); ok {
				existing, matched = entry, KeyShortID
			}
		}
		if matched == "" {
			if entry, ok := idx.LookupByEmail(c.Email); ok {
				existing, matched = entry, KeyEmail
			}
		}

		if c.ShortID == "" {
			id, advanced, ok := seq.next(func(id string) bool {
				_, inFile := explicit[id]
				return inFile || idx.taken(id)
			})
			if !ok {
				out.Errors = append(out.Errors, rowError(c.Row, c.Source, ReasonShortIDExhausted,
					fmt.Sprintf("no free %d-digit matricula left to assign", seq.width())))
				continue
			}
			c.ShortID, seq = id, advanced
			c.ShortIDSynthesized = true
		}

		if matched != "" {
			out.Conflicts = append(out.Conflicts, Conflict{Candidate: c, Existing: existing, MatchedBy: matched})
			continue
		}
		out.Valid = append(out.Valid, c)
	}

	out.Sequence = seq
	return out
}

// next returns the first unreserved identifier after Last. It reports false
// once the sequence no longer fits in the configured width.
func (s Sequence) next(reserved func(string) bool) (string, Sequence, bool) {
	for {
		s.Last++
		id := s.format(s.Last)
		if len(id) > s.width() {
			return "", s, false
		}
		if !reserved(id) {
			return id, s, true
		}
	}
}

// ParseShortID returns the numeric value of a matricula, or false when it is
// not purely numeric.
func ParseShortID(shortID string) (int, bool) {
	if shortID == "" {
		return 0, false
	}
	n, err := strconv.Atoi(shortID)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
