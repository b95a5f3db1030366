// Package memory is the LevelDB-backed history of accepted plans and their
// execution outcomes. The dispatcher consults it to answer "what did you
// do" style requests without replanning; nothing in the planning core
// depends on it.
//
// Writes are async (fire-and-forget channel); Recall is synchronous.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const keyPrefix = "plan:"

// PlanRecord is one remembered plan.
type PlanRecord struct {
	ID        string   `json:"id"`
	RequestID string   `json:"request_id"`
	Goal      string   `json:"goal"`
	Commands  []string `json:"commands"`
	Status    string   `json:"status"` // "executed" | "accepted" | "failed"
	CreatedAt string   `json:"created_at"`
}

// Store is the plan-history store.
type Store struct {
	db      *leveldb.DB
	writeCh chan PlanRecord // async write queue; buffered so planning never blocks on disk
}

// Open opens (or creates) a LevelDB database at dbPath.
// dbPath should be a directory path (LevelDB creates it if absent).
func Open(dbPath string) (*Store, error) {
	db, err := leveldb.OpenFile(dbPath, nil)
	if err != nil {
		return nil, fmt.Errorf("memory: open %s: %w (another labhand process may be running; LevelDB is single-writer)", dbPath, err)
	}
	return &Store{db: db, writeCh: make(chan PlanRecord, 256)}, nil
}

// Record enqueues rec for async persistence. Non-blocking: drops the record
// with a warning when the queue is full.
func (s *Store) Record(rec PlanRecord) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt == "" {
		rec.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	select {
	case s.writeCh <- rec:
	default:
		slog.Warn("memory: write queue full — dropping plan record", "id", rec.ID, "goal", rec.Goal)
	}
}

// Run drains the write queue until ctx is cancelled, then flushes what is
// still pending and closes the database.
func (s *Store) Run(ctx context.Context) {
	for {
		select {
		case rec := <-s.writeCh:
			s.persist(rec)
		case <-ctx.Done():
			for {
				select {
				case rec := <-s.writeCh:
					s.persist(rec)
				default:
					if err := s.db.Close(); err != nil {
						slog.Warn("memory: close failed", "err", err)
					}
					return
				}
			}
		}
	}
}

func (s *Store) persist(rec PlanRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		slog.Warn("memory: marshal failed", "id", rec.ID, "err", err)
		return
	}
	// CreatedAt-prefixed key keeps iteration in chronological order.
	key := keyPrefix + rec.CreatedAt + ":" + rec.ID
	if err := s.db.Put([]byte(key), data, nil); err != nil {
		slog.Warn("memory: put failed", "id", rec.ID, "err", err)
	}
}

// Recall returns up to limit records whose goal shares a keyword with
// query, newest first. An empty query returns the newest records.
func (s *Store) Recall(query string, limit int) ([]PlanRecord, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(keyPrefix)), nil)
	defer iter.Release()

	kw := Tokenize(query)
	var results []PlanRecord
	for iter.Next() {
		var rec PlanRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue
		}
		if len(kw) > 0 && !overlaps(rec.Goal, kw) {
			continue
		}
		results = append(results, rec)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("memory: recall: %w", err)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt > results[j].CreatedAt
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// stopwords are query filler that would match nearly every stored goal.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "you": true, "your": true,
	"what": true, "when": true, "how": true, "did": true, "was": true,
	"were": true, "that": true, "this": true, "with": true, "into": true,
	"onto": true, "from": true, "about": true, "please": true, "can": true,
	"could": true, "have": true, "some": true,
}

// Tokenize splits s into lowercase keywords, dropping words shorter than
// three letters, stopwords, and trailing punctuation.
func Tokenize(s string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,!?;:\"'")
		if len(w) < 3 || stopwords[w] {
			continue
		}
		words = append(words, w)
	}
	return words
}

// overlaps reports whether the goal and the query share a whole keyword.
func overlaps(goal string, kw []string) bool {
	goalWords := make(map[string]bool)
	for _, w := range Tokenize(goal) {
		goalWords[w] = true
	}
	for _, k := range kw {
		if goalWords[k] {
			return true
		}
	}
	return false
}
