package diary

import "fmt"

// Signature identifies an entry by content rather than by id, so that the
// same entry written on two sides with different ids still dedupes. The
// content component is capped at 50 runes to keep keys short.
func Signature(e Entry) string {
	content := []rune(e.Content)
	if len(content) > 50 {
		content = content[:50]
	}
	return fmt.Sprintf("%d_%s_%s", e.Timestamp, e.Title, string(content))
}

// TitleMinuteSignature is the looser secondary key: same title within the
// same minute. It catches near-duplicates whose timestamps drifted during
// a sync round trip.
func TitleMinuteSignature(e Entry) string {
	return fmt.Sprintf("%d_%s", e.Timestamp-e.Timestamp%60000, e.Title)
}
