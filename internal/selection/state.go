// Package selection tracks an operator's contact selection without holding
// every matching row: either an explicit id set, or "everything matching the
// filter" minus exclusions.
package selection

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/unclebandit/outreach-backend/internal/model"
)

type Mode string

const (
	ModeExplicit    Mode = "explicit"
	ModeAllMatching Mode = "all-matching"
)

// Row is the part of a visible contact the selection needs.
type Row struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

func (r Row) addresses() []string { return model.SplitEmails(r.Email) }

// State is a selection. Contacts with several addresses sit in a pending set
// until the operator picks one address or skips them; pending contacts are
// never submitted.
type State struct {
	mode       Mode
	explicit   map[int64]struct{}
	exclusions map[int64]struct{}
	overrides  map[int64]string
	pending    map[int64][]string
}

func New() *State {
	return &State{
		mode:       ModeExplicit,
		explicit:   map[int64]struct{}{},
		exclusions: map[int64]struct{}{},
		overrides:  map[int64]string{},
		pending:    map[int64][]string{},
	}
}

func (s *State) Mode() Mode { return s.mode }

func (s *State) markPendingIfAmbiguous(r Row) {
	addrs := r.addresses()
	if len(addrs) <= 1 {
		return
	}
	if _, ok := s.overrides[r.ID]; ok {
		return
	}
	s.pending[r.ID] = addrs
}

// ToggleRow flips one row. In all-matching mode toggling off means excluding
// the row from the global set.
func (s *State) ToggleRow(r Row) {
	switch s.mode {
	case ModeAllMatching:
		if _, excluded := s.exclusions[r.ID]; excluded {
			delete(s.exclusions, r.ID)
			s.markPendingIfAmbiguous(r)
			return
		}
		s.exclusions[r.ID] = struct{}{}
		delete(s.pending, r.ID)
	default:
		if _, selected := s.explicit[r.ID]; selected {
			delete(s.explicit, r.ID)
			delete(s.pending, r.ID)
			return
		}
		s.explicit[r.ID] = struct{}{}
		s.markPendingIfAmbiguous(r)
	}
}

// SelectAllMatching switches to all-matching mode with no exclusions. Visible
// rows with several addresses are queued for resolution.
func (s *State) SelectAllMatching(visible []Row) {
	s.mode = ModeAllMatching
	s.exclusions = map[int64]struct{}{}
	s.explicit = map[int64]struct{}{}
	s.pending = map[int64][]string{}
	for _, r := range visible {
		s.markPendingIfAmbiguous(r)
	}
}

// ResolveEmail picks address for a pending or ambiguous row.
func (s *State) ResolveEmail(r Row, address string) error {
	options, ok := s.pending[r.ID]
	if !ok {
		options = r.addresses()
	}
	if !slices.Contains(options, address) {
		return fmt.Errorf("address %q is not one of contact %d's addresses", address, r.ID)
	}
	s.overrides[r.ID] = address
	delete(s.pending, r.ID)
	return nil
}

// Skip discards a row: removed in explicit mode, excluded in all-matching.
func (s *State) Skip(id int64) {
	delete(s.pending, id)
	delete(s.overrides, id)
	if s.mode == ModeAllMatching {
		s.exclusions[id] = struct{}{}
		return
	}
	delete(s.explicit, id)
}

func (s *State) Clear() {
	*s = *New()
}

func (s *State) IsSelected(id int64) bool {
	if s.mode == ModeAllMatching {
		_, excluded := s.exclusions[id]
		return !excluded
	}
	_, ok := s.explicit[id]
	return ok
}

// EffectiveCount is total minus exclusions in all-matching mode and the
// explicit set size otherwise.
func (s *State) EffectiveCount(totalMatching int) int {
	if s.mode == ModeAllMatching {
		return max(0, totalMatching-len(s.exclusions))
	}
	return len(s.explicit)
}

func (s *State) PendingCount() int { return len(s.pending) }

// ReadyCount is EffectiveCount without the contacts awaiting an address.
func (s *State) ReadyCount(totalMatching int) int {
	return max(0, s.EffectiveCount(totalMatching)-len(s.pending))
}

func (s *State) Pending() map[int64][]string {
	out := make(map[int64][]string, len(s.pending))
	for id, addrs := range s.pending {
		out[id] = slices.Clone(addrs)
	}
	return out
}

// Submission is what the client sends to turn a selection into recipients.
type Submission struct {
	SelectAllMatching  bool                 `json:"selectAllMatching,omitempty"`
	Filters            *model.ContactFilter `json:"filters,omitempty"`
	Exclusions         []int64              `json:"exclusions,omitempty"`
	ContactIDs         []int64              `json:"contactIds,omitempty"`
	ExplicitSelections map[int64]string     `json:"explicitSelections,omitempty"`
}

// Materialize builds the submission payload. Pending contacts are left out:
// added to the exclusions in all-matching mode, dropped from the ids otherwise.
func (s *State) Materialize(filters model.ContactFilter) Submission {
	overrides := make(map[int64]string, len(s.overrides))
	for id, addr := range s.overrides {
		overrides[id] = addr
	}

	if s.mode == ModeAllMatching {
		excluded := keys(s.exclusions)
		for id := range s.pending {
			if !slices.Contains(excluded, id) {
				excluded = append(excluded, id)
			}
		}
		slices.Sort(excluded)
		f := filters
		return Submission{
			SelectAllMatching:  true,
			Filters:            &f,
			Exclusions:         excluded,
			ExplicitSelections: overrides,
		}
	}

	ids := make([]int64, 0, len(s.explicit))
	for id := range s.explicit {
		if _, waiting := s.pending[id]; !waiting {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return Submission{ContactIDs: ids, ExplicitSelections: overrides}
}

func keys(m map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

type wireState struct {
	Mode       Mode               `json:"mode"`
	Explicit   []int64            `json:"explicit_ids"`
	Exclusions []int64            `json:"exclusions"`
	Overrides  map[int64]string   `json:"email_overrides"`
	Pending    map[int64][]string `json:"pending"`
}

func (s *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireState{
		Mode:       s.mode,
		Explicit:   keys(s.explicit),
		Exclusions: keys(s.exclusions),
		Overrides:  s.overrides,
		Pending:    s.pending,
	})
}

func (s *State) UnmarshalJSON(data []byte) error {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	fresh := New()
	switch w.Mode {
	case ModeAllMatching, ModeExplicit:
		fresh.mode = w.Mode
	case "":
	default:
		return fmt.Errorf("unknown selection mode %q", w.Mode)
	}
	for _, id := range w.Explicit {
		fresh.explicit[id] = struct{}{}
	}
	for _, id := range w.Exclusions {
		fresh.exclusions[id] = struct{}{}
	}
	for id, addr := range w.Overrides {
		fresh.overrides[id] = addr
	}
	for id, addrs := range w.Pending {
		fresh.pending[id] = addrs
	}
	*s = *fresh
	return nil
}
