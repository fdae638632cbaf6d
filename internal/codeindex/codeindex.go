// Package codeindex precomputes the selectable product codes of every
// classification level.
package codeindex

import (
	"sort"

	"github.com/tradelens/analytics-engine/internal/dataset"
	"github.com/tradelens/analytics-engine/internal/model"
)

// Index maps each level to its distinct (code, label) pairs. Read-only after Build.
type Index struct {
	entries [4][]model.CodeEntry
	labels  [4]map[string]string
}

// Build scans the dataset once. When a code carries several descriptions the
// first one seen wins.
func Build(ds *dataset.Dataset) *Index {
	idx := &Index{}
	for _, l := range model.Levels {
		idx.labels[l.Index()] = make(map[string]string)
	}

	records := ds.Records()
	for i := range records {
		r := &records[i]
		for _, l := range model.Levels {
			labels := idx.labels[l.Index()]
			code := r.Code(l)
			if _, ok := labels[code]; ok {
				continue
			}
			labels[code] = r.Label(l)
		}
	}

	for _, l := range model.Levels {
		labels := idx.labels[l.Index()]
		entries := make([]model.CodeEntry, 0, len(labels))
		for code, label := range labels {
			entries = append(entries, model.CodeEntry{Code: code, Label: label})
		}
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].Label != entries[j].Label {
				return entries[i].Label < entries[j].Label
			}
			return entries[i].Code < entries[j].Code
		})
		idx.entries[l.Index()] = entries
	}
	return idx
}

// CodesAtLevel returns the entries of level sorted by label. Invalid levels
// yield nil; callers validate with model.ParseLevel first.
func (x *Index) CodesAtLevel(level model.Level) []model.CodeEntry {
	if !level.Valid() {
		return nil
	}
	return x.entries[level.Index()]
}

// Label returns the label of code at level.
func (x *Index) Label(level model.Level, code string) (string, bool) {
	if !level.Valid() {
		return "", false
	}
	label, ok := x.labels[level.Index()][code]
	return label, ok
}
