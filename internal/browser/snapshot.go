package browser

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Ref is one element of an accessibility snapshot.
type Ref struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
}

// Snapshot is the accessibility tree of the current page.
type Snapshot struct {
	Refs map[string]Ref
	Text string
}

type snapshotResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Refs map[string]struct {
			Name string `json:"name"`
			Role string `json:"role"`
		} `json:"refs"`
		Snapshot string `json:"snapshot"`
	} `json:"data"`
	Error string `json:"error"`
}

// ParseSnapshot decodes the JSON output of `snapshot --json`.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var resp snapshotResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrSnapshotFailed, err)
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("%w: %s", ErrSnapshotFailed, msg)
	}

	snap := &Snapshot{
		Refs: make(map[string]Ref, len(resp.Data.Refs)),
		Text: resp.Data.Snapshot,
	}
	for id, r := range resp.Data.Refs {
		snap.Refs[id] = Ref{ID: id, Role: r.Role, Name: r.Name}
	}
	return snap, nil
}

// RefNumber returns the numeric part of a ref id ("e12" -> 12), or -1.
func RefNumber(id string) int {
	digits := strings.TrimLeftFunc(id, func(r rune) bool { return r < '0' || r > '9' })
	n, err := strconv.Atoi(digits)
	if err != nil {
		return -1
	}
	return n
}

// Ordered returns refs in document order (ascending ref number).
func (s *Snapshot) Ordered() []Ref {
	refs := make([]Ref, 0, len(s.Refs))
	for _, r := range s.Refs {
		refs = append(refs, r)
	}
	sort.Slice(refs, func(i, j int) bool {
		ni, nj := RefNumber(refs[i].ID), RefNumber(refs[j].ID)
		if ni != nj {
			return ni < nj
		}
		return refs[i].ID < refs[j].ID
	})
	return refs
}

// FindFunc returns the first ref in document order accepted by match.
func (s *Snapshot) FindFunc(match func(Ref) bool) (Ref, bool) {
	for _, r := range s.Ordered() {
		if match(r) {
			return r, true
		}
	}
	return Ref{}, false
}

// Find returns the first ref with the given role and name. Names compare
// case-insensitively after trimming; an empty role matches any role.
func (s *Snapshot) Find(role, name string) (Ref, bool) {
	return s.FindFunc(func(r Ref) bool {
		if role != "" && !strings.EqualFold(r.Role, role) {
			return false
		}
		return sameName(r.Name, name)
	})
}

// HasRole reports whether any element has one of the given roles.
func (s *Snapshot) HasRole(roles ...string) bool {
	for _, r := range s.Refs {
		for _, role := range roles {
			if strings.EqualFold(r.Role, role) {
				return true
			}
		}
	}
	return false
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
