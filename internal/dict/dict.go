// Package dict builds the compact integer dictionaries make-buffer needs:
// user ids and word ids, both assigned in descending-frequency order (so id
// 0 is the corpus's most frequent user/word), with an optional
// minimum-frequency cutoff and optional stopword removal.
package dict

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// FreqTable counts occurrences of strings while remembering first-seen
// order, so that frequency ties sort deterministically instead of depending
// on Go's unordered map iteration.
type FreqTable struct {
	index  map[string]int
	order  []string
	counts []int
}

// NewFreqTable returns an empty table.
func NewFreqTable() *FreqTable {
	return &FreqTable{index: make(map[string]int)}
}

// Add records one occurrence of s.
func (f *FreqTable) Add(s string) {
	if i, ok := f.index[s]; ok {
		f.counts[i]++
		return
	}
	f.index[s] = len(f.order)
	f.order = append(f.order, s)
	f.counts = append(f.counts, 1)
}

// Count returns how many times s was added, or 0 if it was never seen.
func (f *FreqTable) Count(s string) int {
	if i, ok := f.index[s]; ok {
		return f.counts[i]
	}
	return 0
}

// Remove deletes s from the table entirely (used for stopword filtering).
func (f *FreqTable) Remove(s string) {
	i, ok := f.index[s]
	if !ok {
		return
	}
	delete(f.index, s)
	f.order = append(f.order[:i], f.order[i+1:]...)
	f.counts = append(f.counts[:i], f.counts[i+1:]...)
	for j := i; j < len(f.order); j++ {
		f.index[f.order[j]] = j
	}
}

// entry pairs a string with its count and original position, for a stable
// descending sort.
type entry struct {
	s     string
	count int
	pos   int
}

// SortedDescending returns entries in descending-count order, breaking ties
// by first-seen position (stable, deterministic regardless of map
// iteration order).
func (f *FreqTable) SortedDescending() []struct {
	String string
	Count  int
} {
	entries := make([]entry, len(f.order))
	for i, s := range f.order {
		entries[i] = entry{s: s, count: f.counts[i], pos: i}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].pos < entries[j].pos
	})

	out := make([]struct {
		String string
		Count  int
	}, len(entries))
	for i, e := range entries {
		out[i] = struct {
			String string
			Count  int
		}{e.s, e.count}
	}
	return out
}

// Dictionary maps strings to dense integer ids assigned in
// descending-frequency order.
type Dictionary struct {
	ids   map[string]uint32
	count int
}

// Build assigns ids 0..n-1 to table's entries in descending-frequency order,
// stopping (and excluding the rest) at the first entry whose count falls
// below minFreq. The early break only behaves correctly because
// SortedDescending's output is already sorted descending.
func Build(table *FreqTable, minFreq int) *Dictionary {
	d := &Dictionary{ids: make(map[string]uint32)}
	for _, e := range table.SortedDescending() {
		if e.Count < minFreq {
			break
		}
		d.ids[e.String] = uint32(d.count)
		d.count++
	}
	return d
}

// ID returns the id assigned to s and whether s is present in the
// dictionary.
func (d *Dictionary) ID(s string) (uint32, bool) {
	id, ok := d.ids[s]
	return id, ok
}

// Len returns the number of entries in the dictionary.
func (d *Dictionary) Len() int {
	return d.count
}

// Save writes the dictionary as "<string>\t<count>" lines in id order, the
// text format make-buffer emits for the user and word dictionaries.
func Save(path string, table *FreqTable, d *Dictionary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dict: create %s: %w", path, err)
	}
	defer f.Close()

	ordered := make([]string, d.count)
	for s, id := range d.ids {
		ordered[id] = s
	}

	w := bufio.NewWriter(f)
	for _, s := range ordered {
		if _, err := fmt.Fprintf(w, "%s\t%d\n", s, table.Count(s)); err != nil {
			return err
		}
	}
	return w.Flush()
}

// LoadLabels reads a dictionary file written by Save and returns its
// strings in id order (line 0 is id 0, and so on) — the form the dump and
// inference commands need to turn ids back into text, and the form
// inference needs to rebuild a word->id lookup consistent with training.
func LoadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dict: open %s: %w", path, err)
	}
	defer f.Close()

	var labels []string
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := s.Text()
		if line == "" {
			continue
		}
		label, _, _ := strings.Cut(line, "\t")
		labels = append(labels, label)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return labels, nil
}

// StopwordSet is a set of words to exclude from the word dictionary.
type StopwordSet map[string]struct{}

// LoadStopwords reads a newline-separated stopword file.
func LoadStopwords(path string) (StopwordSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dict: open stopwords %s: %w", path, err)
	}
	defer f.Close()

	set := make(StopwordSet)
	s := bufio.NewScanner(f)
	for s.Scan() {
		w := strings.TrimSpace(s.Text())
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set, s.Err()
}
