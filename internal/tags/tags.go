// Package tags implements the classification vocabulary, per-identity
// tag toggling, and the single-select global filter.
package tags

import "github.com/nexuskeeper/nexus/internal/models"

// Vocabulary is the fixed, closed set of tags offered for assignment.
// Imported identities may carry tags outside this set; those are kept
// but never offered in the assignment flow.
var Vocabulary = []string{"FARM", "FORGE", "HARBOR", "ARCHIVE"}

// FilterAll is the filter sentinel meaning "show every identity".
// Tags are never empty strings, so the empty string is free to use.
const FilterAll = ""

// Known reports whether tag belongs to the assignment vocabulary.
func Known(tag string) bool {
	for _, t := range Vocabulary {
		if t == tag {
			return true
		}
	}
	return false
}

// Toggle returns set with tag removed if present, or appended if not.
// The input slice is not modified.
func Toggle(set []string, tag string) []string {
	out := make([]string, 0, len(set)+1)
	found := false
	for _, t := range set {
		if t == tag {
			found = true
			continue
		}
		out = append(out, t)
	}
	if !found {
		out = append(out, tag)
	}
	return out
}

// Contains reports whether set holds tag.
func Contains(set []string, tag string) bool {
	for _, t := range set {
		if t == tag {
			return true
		}
	}
	return false
}

// Visible returns the identities matching filter, preserving their
// relative order. FilterAll returns the input unchanged.
func Visible(ids []models.Identity, filter string) []models.Identity {
	if filter == FilterAll {
		return ids
	}
	out := make([]models.Identity, 0, len(ids))
	for _, id := range ids {
		if Contains(id.Tags, filter) {
			out = append(out, id)
		}
	}
	return out
}

// Classifier tracks the active global filter and the pending tag set
// used by the new-identity form before a record exists.
type Classifier struct {
	filter  string
	pending []string
}

// NewClassifier returns a classifier with no active filter and an
// empty pending set.
func NewClassifier() *Classifier {
	return &Classifier{filter: FilterAll}
}

// SetFilter replaces the active filter. Pass FilterAll to show all.
func (c *Classifier) SetFilter(tag string) {
	c.filter = tag
}

// Filter returns the active filter tag, or FilterAll.
func (c *Classifier) Filter() string {
	return c.filter
}

// Visible applies the active filter to ids.
func (c *Classifier) Visible(ids []models.Identity) []models.Identity {
	return Visible(ids, c.filter)
}

// TogglePending flips tag in the pending new-identity set. Tags outside
// the vocabulary are ignored: assignment is restricted to known tags
// even though import is not.
func (c *Classifier) TogglePending(tag string) {
	if !Known(tag) {
		return
	}
	c.pending = Toggle(c.pending, tag)
}

// Pending returns a copy of the pending tag set.
func (c *Classifier) Pending() []string {
	return append([]string(nil), c.pending...)
}

// ResetPending clears the pending tag set, for when the new-identity
// form is submitted or abandoned.
func (c *Classifier) ResetPending() {
	c.pending = nil
}
