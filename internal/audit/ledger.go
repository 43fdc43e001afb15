// Package audit keeps a hash-chained journal of every status a build posts.
//
// The journal lives next to the build logs as journal.jsonl, one entry per
// line. Each entry carries the hash of the previous one, so editing or
// dropping a line breaks VerifyChain
package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fireq/internal/storage"
)

// FileName is the journal file inside a build's log directory
const FileName = "journal.jsonl"

// Journal is the status journal of one build
type Journal struct {
	mu      sync.Mutex
	entries []*Entry
	path    string
	now     func() time.Time
}

// OpenJournal loads an existing journal file or starts an empty one
func OpenJournal(path string) (*Journal, error) {
	j := &Journal{
		entries: make([]*Entry, 0),
		path:    path,
		now:     time.Now,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return j, nil
	}
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("decode journal entry: %w", err)
		}
		j.entries = append(j.entries, &e)
	}
	return j, nil
}

// Append links e to the last entry, seals it and persists it
func (j *Journal) Append(e Entry) (*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	e.Index = len(j.entries)
	e.Timestamp = j.now().UTC().Format(time.RFC3339Nano)
	e.PrevHash = ""
	if len(j.entries) > 0 {
		e.PrevHash = j.entries[len(j.entries)-1].Hash
	}
	if err := e.seal(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(&e); err != nil {
		return nil, fmt.Errorf("write journal: %w", err)
	}

	j.entries = append(j.entries, &e)
	return &e, nil
}

// Entries returns a copy of the entries in order
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Entry, len(j.entries))
	for i, e := range j.entries {
		out[i] = *e
	}
	return out
}

// LastHash returns the last entry hash (or empty if none)
func (j *Journal) LastHash() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.entries) == 0 {
		return ""
	}
	return j.entries[len(j.entries)-1].Hash
}

// Journals hands out one journal per build log directory. Concurrent tasks
// of a build share the same *Journal, so appends are serialised
type Journals struct {
	storage *storage.LogStorage
	mu      sync.Mutex
	open    map[string]*Journal
}

// NewJournals creates a journal registry rooted at ls
func NewJournals(ls *storage.LogStorage) *Journals {
	return &Journals{storage: ls, open: make(map[string]*Journal)}
}

// Get opens (or returns the already open) journal of logPath
func (js *Journals) Get(logPath string) (*Journal, error) {
	js.mu.Lock()
	defer js.mu.Unlock()
	if j, ok := js.open[logPath]; ok {
		return j, nil
	}
	dir, err := js.storage.EnsureDir(logPath)
	if err != nil {
		return nil, err
	}
	j, err := OpenJournal(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}
	js.open[logPath] = j
	return j, nil
}

// Append records e in the journal of logPath. body is the response as it
// was written to e.Response
func (js *Journals) Append(logPath string, e Entry, body []byte) error {
	j, err := js.Get(logPath)
	if err != nil {
		return err
	}
	e.BodyHash = HashBytes(body)
	_, err = j.Append(e)
	return err
}

// Release forgets the journal of a finished build
func (js *Journals) Release(logPath string) {
	js.mu.Lock()
	defer js.mu.Unlock()
	delete(js.open, logPath)
}
