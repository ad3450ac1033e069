package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// memoryRoster is an in-memory roster that records the order of writes.
type memoryRoster struct {
	entries      []RosterEntry
	loadErr      error
	failDeact    map[string]bool
	createErr    error
	rejectEmails map[string]string
	dropEmails   map[string]bool
	ops          []string
	batches      [][]Candidate
}

func (m *memoryRoster) LoadActiveRoster(ctx context.Context) ([]RosterEntry, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := make([]RosterEntry, 0, len(m.entries))
	for _, e := range m.entries {
		if e.Active() {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryRoster) HighestShortID(ctx context.Context) (int, error) {
	highest := 0
	for _, e := range m.entries {
		if n, ok := ParseShortID(e.ShortID); ok && n > highest {
			highest = n
		}
	}
	return highest, nil
}

func (m *memoryRoster) Deactivate(ctx context.Context, id string) error {
	m.ops = append(m.ops, "deactivate:"+id)
	if m.failDeact[id] {
		return errors.New("connection reset")
	}
	for i := range m.entries {
		if m.entries[i].ID == id {
			m.entries[i].Status = StatusInactive
			return nil
		}
	}
	return fmt.Errorf("employee %s not found", id)
}

func (m *memoryRoster) CreateMany(ctx context.Context, batch []Candidate) (CreateResult, error) {
	m.ops = append(m.ops, fmt.Sprintf("create:%d", len(batch)))
	m.batches = append(m.batches, batch)
	if m.createErr != nil {
		return CreateResult{}, m.createErr
	}
	var result CreateResult
	for _, c := range batch {
		if msg, reject := m.rejectEmails[c.Email]; reject {
			result.Rejected = append(result.Rejected, Rejection{Row: c.Row, Message: msg})
			continue
		}
		if m.dropEmails[c.Email] {
			continue
		}
		id := fmt.Sprintf("new-%d", len(m.entries)+1)
		m.entries = append(m.entries, RosterEntry{ID: id, Name: c.Name, Email: c.Email, ShortID: c.ShortID, Status: StatusActive})
		result.Created = append(result.Created, CreatedIdentity{Row: c.Row, ID: id, Email: c.Email, ShortID: c.ShortID})
	}
	return result, nil
}

func (m *memoryRoster) status(id string) string {
	for _, e := range m.entries {
		if e.ID == id {
			return e.Status
		}
	}
	return ""
}

func row(line int, name, email, shortID string) RawRow {
	fields := map[string]string{"Nome Completo": name, "Email": email}
	if shortID != "" {
		fields["Matrícula"] = shortID
	}
	return RawRow{Line: line, Fields: fields}
}

func createdEmails(r Report) []string {
	out := make([]string, 0, len(r.Created))
	for _, c := range r.Created {
		out = append(out, strings.ToLower(c.Email))
	}
	return out
}
