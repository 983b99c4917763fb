package rag

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Record is one indexed chunk. Records are immutable; the whole index is
// replaced wholesale on rebuild.
type Record struct {
	RecordID  string            `json:"record_id"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata"`
	Embedding []float64         `json:"embedding"`
}

// Match is a search result: a record and its cosine similarity score.
type Match struct {
	Record Record
	Score  float64
}

// Store is a JSONL-backed vector index with a lazily loaded, signature-
// invalidated in-memory parse. Any change to the file's size or mtime
// invalidates the cached records.
type Store struct {
	path string

	mu      sync.Mutex
	sig     signature
	records []Record
	loaded  bool

	group singleflight.Group
}

type signature struct {
	mtimeNS int64
	size    int64
}

// NewStore creates a store over the given index file. The file need not
// exist yet; an absent index reads as empty.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Version returns a token derived from the on-disk signature, suitable for
// inclusion in higher-level cache keys.
func (s *Store) Version() string {
	sig := s.signature()
	return fmt.Sprintf("%d:%d", sig.mtimeNS, sig.size)
}

// Replace atomically publishes a new record set, replacing the old index
// wholesale. A crash mid-write never leaves a mixed index: records are
// written to a temporary file and renamed into place.
func (s *Store) Replace(records []Record) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".index-*.jsonl")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			tmp.Close()
			return fmt.Errorf("encode record %s: %w", record.RecordID, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush temp index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp index: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("publish index: %w", err)
	}

	s.mu.Lock()
	s.records = records
	s.sig = s.signature()
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// Load returns the current record set, reusing the cached parse while the
// on-disk signature is unchanged. Concurrent reloads of a changed index
// are deduplicated.
func (s *Store) Load() ([]Record, error) {
	sig := s.signature()

	s.mu.Lock()
	if s.loaded && s.sig == sig {
		records := s.records
		s.mu.Unlock()
		return records, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do("load", func() (any, error) {
		records, err := s.parse()
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.records = records
		s.sig = sig
		s.loaded = true
		s.mu.Unlock()
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Record), nil
}

// Search returns the top-k records by descending cosine similarity to the
// query vector. A zero-norm query yields no results.
func (s *Store) Search(query []float64, topK int) ([]Match, error) {
	records, err := s.Load()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 || topK <= 0 {
		return nil, nil
	}

	queryNorm := norm(query)
	if queryNorm == 0 {
		return nil, nil
	}

	matches := make([]Match, 0, len(records))
	for _, record := range records {
		score := 0.0
		if denom := norm(record.Embedding) * queryNorm; denom != 0 {
			score = dot(query, record.Embedding) / denom
		}
		matches = append(matches, Match{Record: record, Score: score})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *Store) parse() ([]Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("parse index line: %w", err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan index: %w", err)
	}
	return records, nil
}

func (s *Store) signature() signature {
	info, err := os.Stat(s.path)
	if err != nil {
		return signature{}
	}
	return signature{mtimeNS: info.ModTime().UnixNano(), size: info.Size()}
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
