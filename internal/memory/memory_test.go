package memory

import (
	"path/filepath"
	"testing"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "plans"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.db.Close() })
	return s
}

func TestRecall_MatchesGoalKeywords(t *testing.T) {
	s := openStore(t)
	s.persist(PlanRecord{ID: "1", Goal: "a glass of milk", CreatedAt: "2026-08-20T10:00:00Z", Status: "executed"})
	s.persist(PlanRecord{ID: "2", Goal: "basil on the pizza dough", CreatedAt: "2026-08-21T10:00:00Z", Status: "executed"})

	recs, err := s.Recall("what about the milk", 10)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "1" {
		t.Errorf("recall = %+v, want only the milk plan", recs)
	}
}

func TestRecall_EmptyQueryReturnsNewestFirst(t *testing.T) {
	s := openStore(t)
	s.persist(PlanRecord{ID: "old", Goal: "first", CreatedAt: "2026-08-19T10:00:00Z"})
	s.persist(PlanRecord{ID: "new", Goal: "second", CreatedAt: "2026-08-21T10:00:00Z"})

	recs, err := s.Recall("", 10)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != "new" {
		t.Errorf("order wrong: %+v", recs)
	}
}

func TestRecall_HonorsLimit(t *testing.T) {
	s := openStore(t)
	for i, ts := range []string{"2026-08-19T10:00:00Z", "2026-08-20T10:00:00Z", "2026-08-21T10:00:00Z"} {
		s.persist(PlanRecord{ID: string(rune('a' + i)), Goal: "milk run", CreatedAt: ts})
	}
	recs, err := s.Recall("milk", 2)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("got %d records, want 2", len(recs))
	}
}

func TestRecord_FillsIDAndTimestamp(t *testing.T) {
	s := openStore(t)
	s.Record(PlanRecord{Goal: "g"})
	rec := <-s.writeCh
	if rec.ID == "" || rec.CreatedAt == "" {
		t.Errorf("record not filled: %+v", rec)
	}
}

func TestTokenize_DropsShortAndStopWords(t *testing.T) {
	got := Tokenize("Put it ON the Big Plate")
	want := map[string]bool{"put": true, "big": true, "plate": true}
	if len(got) != len(want) {
		t.Fatalf("tokens = %v", got)
	}
	for _, w := range got {
		if !want[w] {
			t.Errorf("unexpected token %q", w)
		}
	}
}

func TestTokenize_TrimsPunctuation(t *testing.T) {
	got := Tokenize("pour the milk, please!")
	if len(got) != 2 || got[0] != "pour" || got[1] != "milk" {
		t.Errorf("tokens = %v, want [pour milk]", got)
	}
}

func TestRecall_FillerOnlyQueryFallsBackToNewest(t *testing.T) {
	// "what did you do" carries no keywords; it behaves like an empty query
	s := openStore(t)
	s.persist(PlanRecord{ID: "old", Goal: "a glass of milk", CreatedAt: "2026-08-20T10:00:00Z"})
	s.persist(PlanRecord{ID: "new", Goal: "basil on the pizza dough", CreatedAt: "2026-08-21T10:00:00Z"})

	recs, err := s.Recall("what did you do", 10)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != "new" {
		t.Errorf("recall = %+v, want both records newest first", recs)
	}
}

func TestRecall_KeywordMatchesWholeWordsOnly(t *testing.T) {
	s := openStore(t)
	s.persist(PlanRecord{ID: "1", Goal: "a glass of milk", CreatedAt: "2026-08-20T10:00:00Z"})

	recs, err := s.Recall("milky", 10)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("recall = %+v, want no substring matches", recs)
	}
}
