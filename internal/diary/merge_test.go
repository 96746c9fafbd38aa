package diary

import (
	"reflect"
	"testing"
)

func entry(id, title string, ts int64) Entry {
	return Entry{ID: id, Title: title, Content: "content of " + title, Timestamp: ts}
}

func TestMergeUnionsDistinctEntries(t *testing.T) {
	remote := []Entry{entry("r1", "远程", 3000)}
	local := []Entry{entry("l1", "本地", 1000), entry("l2", "本地二", 2000)}

	merged := Merge(remote, local)
	if len(merged) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(merged))
	}
	// Newest first.
	for i := 1; i < len(merged); i++ {
		if merged[i-1].Timestamp < merged[i].Timestamp {
			t.Fatalf("merge result not sorted newest first: %+v", merged)
		}
	}
}

func TestMergeDedupesBySignatureRemoteWinsTies(t *testing.T) {
	shared := entry("local-id", "共享", 5000)
	remoteCopy := shared
	remoteCopy.ID = "remote-id"

	merged := Merge([]Entry{remoteCopy}, []Entry{shared})
	if len(merged) != 1 {
		t.Fatalf("expected the copies to collapse, got %d entries", len(merged))
	}
	if merged[0].ID != "remote-id" {
		t.Fatalf("remote should win the tie, got id %q", merged[0].ID)
	}
}

func TestMergeNewerTimestampWins(t *testing.T) {
	old := entry("x", "标题", 1699999980000)
	// Same title within the same minute but a later timestamp: the loose
	// signature folds them and the newer one survives.
	newer := old
	newer.ID = "y"
	newer.Timestamp = old.Timestamp + 30000
	newer.Content = "updated"

	merged := Merge([]Entry{old}, []Entry{newer})
	if len(merged) != 1 {
		t.Fatalf("expected near-duplicates to fold, got %d entries", len(merged))
	}
	if merged[0].ID != "y" {
		t.Fatalf("the newer entry should survive, got %q", merged[0].ID)
	}
}

func TestMergeFoldsSyncRoundTripCopies(t *testing.T) {
	// The same entry written locally and uploaded: different ids, the same
	// title, the same content prefix, timestamps five seconds apart.
	base := int64(1700000040000)
	localCopy := Entry{ID: "L1", Title: "Trip", Content: "We left early in the morning and...", Timestamp: base}
	remoteCopy := localCopy
	remoteCopy.ID = "R1"
	remoteCopy.Timestamp = base + 5000

	merged := Merge([]Entry{remoteCopy}, []Entry{localCopy})
	if len(merged) != 1 {
		t.Fatalf("expected one surviving entry, got %d", len(merged))
	}
	if merged[0].ID != "R1" {
		t.Fatalf("the greater timestamp should win, got %q", merged[0].ID)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	remote := []Entry{entry("r1", "远程", 3000), entry("r2", "远程二", 4000)}
	local := []Entry{entry("l1", "本地", 1000)}

	once := Merge(remote, local)
	twice := Merge(remote, once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("repeated merge changed the result:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestPatchApply(t *testing.T) {
	e := entry("e1", "原标题", 1000)
	title := "新标题"
	patched := Patch{Title: &title}.Apply(e)
	if patched.Title != "新标题" || patched.Content != e.Content {
		t.Fatalf("patch should replace only the set fields, got %+v", patched)
	}
}
