package state

import (
	"errors"
	"fmt"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestKVRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Set(KeyUserID, "abc"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, err := s.Get(KeyUserID); err != nil || v != "abc" {
		t.Fatalf("get = %q, %v", v, err)
	}

	// Overwrite, then delete.
	if err := s.Set(KeyUserID, "def"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if v, _ := s.Get(KeyUserID); v != "def" {
		t.Fatalf("expected overwrite to win, got %q", v)
	}
	if err := s.Delete(KeyUserID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(KeyUserID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDocsOrderingAndTrim(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 5; i++ {
		doc := Doc{
			ID:          fmt.Sprintf("doc-%d", i),
			TimestampMs: int64(1000 + i),
			Body:        fmt.Sprintf(`{"n":%d}`, i),
		}
		if err := s.PutDoc(doc); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}

	docs, err := s.ListDocs(0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 5 {
		t.Fatalf("expected 5 docs, got %d", len(docs))
	}
	if docs[0].ID != "doc-4" || docs[4].ID != "doc-0" {
		t.Fatalf("expected newest-first ordering, got %s .. %s", docs[0].ID, docs[4].ID)
	}

	if err := s.TrimDocs(3); err != nil {
		t.Fatalf("trim: %v", err)
	}
	docs, _ = s.ListDocs(0)
	if len(docs) != 3 {
		t.Fatalf("expected 3 docs after trim, got %d", len(docs))
	}
	if docs[len(docs)-1].ID != "doc-2" {
		t.Fatalf("trim should drop the oldest docs, kept %s", docs[len(docs)-1].ID)
	}

	if n, err := s.CountDocs(); err != nil || n != 3 {
		t.Fatalf("count = %d, %v", n, err)
	}
}

func TestReplaceDocsSwapsAtomically(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 3; i++ {
		if err := s.PutDoc(Doc{ID: fmt.Sprintf("old-%d", i), TimestampMs: int64(i), Body: "v"}); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}

	next := []Doc{
		{ID: "new-1", TimestampMs: 2000, Body: "v"},
		{ID: "new-2", TimestampMs: 1000, Body: "v"},
	}
	if err := s.ReplaceDocs(next); err != nil {
		t.Fatalf("replace: %v", err)
	}
	docs, _ := s.ListDocs(0)
	if len(docs) != 2 || docs[0].ID != "new-1" || docs[1].ID != "new-2" {
		t.Fatalf("expected the replacement set, got %+v", docs)
	}

	// A duplicate id fails the insert mid-transaction; the rollback keeps
	// the previous contents untouched.
	bad := []Doc{
		{ID: "dup", TimestampMs: 1, Body: "v"},
		{ID: "dup", TimestampMs: 2, Body: "v"},
	}
	if err := s.ReplaceDocs(bad); err == nil {
		t.Fatal("expected the duplicate insert to fail")
	}
	docs, _ = s.ListDocs(0)
	if len(docs) != 2 || docs[0].ID != "new-1" {
		t.Fatalf("a failed replace must leave the table intact, got %+v", docs)
	}
}

func TestPutDocUpserts(t *testing.T) {
	s := openTestStore(t)

	if err := s.PutDoc(Doc{ID: "a", TimestampMs: 1, Body: "v1"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.PutDoc(Doc{ID: "a", TimestampMs: 2, Body: "v2"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	docs, _ := s.ListDocs(0)
	if len(docs) != 1 || docs[0].Body != "v2" {
		t.Fatalf("expected one upserted doc, got %+v", docs)
	}
}
