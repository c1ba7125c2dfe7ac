// Package roster reads the user workbook that lists who may take the exam.
package roster

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrRosterMissing is returned when the roster workbook does not exist.
var ErrRosterMissing = errors.New("roster not found")

// Member is one row of the roster.
type Member struct {
	Name       string `json:"name"`
	Department string `json:"department"`
	Email      string `json:"email,omitempty"`
}

// Label is the selectable "Name (Department)" form of the member.
func (m Member) Label() string {
	return fmt.Sprintf("%s (%s)", m.Name, m.Department)
}

// Roster is an immutable, name-indexed list of members.
type Roster struct {
	members []Member
	byName  map[string]int
}

// New builds a roster. Later rows with an already seen name are ignored.
func New(members []Member) *Roster {
	r := &Roster{byName: make(map[string]int, len(members))}
	for _, m := range members {
		m.Name = strings.TrimSpace(m.Name)
		if m.Name == "" {
			continue
		}
		if _, ok := r.byName[m.Name]; ok {
			continue
		}
		r.byName[m.Name] = len(r.members)
		r.members = append(r.members, m)
	}
	return r
}

// Load reads the first sheet of the workbook at path. The header row must contain
// Name and Department columns; Email is optional.
func Load(path string) (*Roster, error) {
	f, err := excelize.OpenFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrRosterMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open roster: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}
	if len(rows) == 0 {
		return New(nil), nil
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range []string{"name", "department"} {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("roster %s has no %q column", path, c)
		}
	}
	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	members := make([]Member, 0, len(rows)-1)
	for _, row := range rows[1:] {
		members = append(members, Member{
			Name:       cell(row, "name"),
			Department: cell(row, "department"),
			Email:      cell(row, "email"),
		})
	}
	return New(members), nil
}

// Users returns the members in roster order.
func (r *Roster) Users() []Member {
	return append([]Member(nil), r.members...)
}

// Lookup finds a member by exact name.
func (r *Roster) Lookup(name string) (Member, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Member{}, false
	}
	return r.members[i], true
}

// Emails returns the non-empty addresses of the named members, in the order given.
func (r *Roster) Emails(names []string) []string {
	var out []string
	for _, n := range names {
		if m, ok := r.Lookup(n); ok && m.Email != "" {
			out = append(out, m.Email)
		}
	}
	return out
}
