package prefs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"tasklens/internal/grouping"
	"tasklens/internal/sorting"
)

const viewPreferenceVersion = 1

// ViewPreference is the persisted per-view state. Search state and forced expansion
// are never part of it.
type ViewPreference struct {
	Version int           `json:"version"`
	Columns []SavedColumn `json:"columns,omitempty"`
	GroupBy grouping.Mode `json:"groupBy,omitempty"`
	Sort    sorting.State `json:"sort"`

	// CollapsedGroups maps a group mode to its collapsed bucket keys.
	CollapsedGroups map[grouping.Mode][]string `json:"collapsedGroups,omitempty"`
	Expanded        []string                   `json:"expanded,omitempty"`
}

func DefaultViewPreference() ViewPreference {
	return ViewPreference{
		Version: viewPreferenceVersion,
		Columns: DefaultColumns().Saved(),
		GroupBy: grouping.ModeNone,
		Sort:    sorting.Default(),
	}
}

// Encode serializes p into the opaque blob handed to a preference store.
func Encode(p ViewPreference) ([]byte, error) {
	if p.Version == 0 {
		p.Version = viewPreferenceVersion
	}
	p.Sort = p.Sort.Normalize()
	for mode, keys := range p.CollapsedGroups {
		if len(keys) == 0 {
			delete(p.CollapsedGroups, mode)
		}
	}
	return json.Marshal(p)
}

// Decode reads a blob written by Encode. An empty blob yields the defaults; unknown
// fields are ignored and invalid values fall back to their defaults.
func Decode(blob []byte) (ViewPreference, error) {
	p := DefaultViewPreference()
	if len(bytes.TrimSpace(blob)) == 0 {
		return p, nil
	}
	var raw ViewPreference
	if err := json.Unmarshal(blob, &raw); err != nil {
		return p, fmt.Errorf("decode view preference: %w", err)
	}
	if len(raw.Columns) > 0 {
		p.Columns = raw.Columns
	}
	if m, err := grouping.ParseMode(string(raw.GroupBy)); err == nil {
		p.GroupBy = m
	}
	if raw.Sort.Column != "" {
		p.Sort = raw.Sort.Normalize()
	}
	p.CollapsedGroups = raw.CollapsedGroups
	p.Expanded = raw.Expanded
	return p, nil
}

// SetFromSets stores collapsed groups and expanded ids from the engine's set form,
// sorted so equal state encodes to equal bytes.
func (p *ViewPreference) SetFromSets(collapsed map[grouping.Mode]map[string]bool, expanded map[string]bool) {
	p.CollapsedGroups = nil
	for mode, keys := range collapsed {
		list := setKeys(keys)
		if len(list) == 0 {
			continue
		}
		if p.CollapsedGroups == nil {
			p.CollapsedGroups = map[grouping.Mode][]string{}
		}
		p.CollapsedGroups[mode] = list
	}
	p.Expanded = setKeys(expanded)
}

func (p ViewPreference) CollapsedSets() map[grouping.Mode]map[string]bool {
	out := map[grouping.Mode]map[string]bool{}
	for mode, keys := range p.CollapsedGroups {
		set := map[string]bool{}
		for _, k := range keys {
			set[k] = true
		}
		out[mode] = set
	}
	return out
}

func (p ViewPreference) ExpandedSet() map[string]bool {
	out := map[string]bool{}
	for _, id := range p.Expanded {
		out[id] = true
	}
	return out
}

func setKeys(m map[string]bool) []string {
	var out []string
	for k, on := range m {
		if on {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
