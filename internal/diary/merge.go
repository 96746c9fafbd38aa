package diary

import "sort"

// Merge reconciles the remote and local views of the diary. Entries pair
// up by content signature; when both sides hold the same entry the one
// with the greater timestamp wins, remote winning ties. A second pass
// folds near-duplicates that share a title within the same minute. The
// result is sorted newest first.
func Merge(remote, local []Entry) []Entry {
	order := make([]string, 0, len(local)+len(remote))
	bySig := make(map[string]Entry, len(local)+len(remote))

	take := func(e Entry, preferOnTie bool) {
		sig := Signature(e)
		cur, ok := bySig[sig]
		if !ok {
			order = append(order, sig)
			bySig[sig] = e
			return
		}
		if e.Timestamp > cur.Timestamp || (preferOnTie && e.Timestamp == cur.Timestamp) {
			bySig[sig] = e
		}
	}
	for _, e := range local {
		take(e, false)
	}
	for _, e := range remote {
		take(e, true)
	}

	byMinute := make(map[string]Entry, len(order))
	minuteOrder := make([]string, 0, len(order))
	for _, sig := range order {
		e := bySig[sig]
		k := TitleMinuteSignature(e)
		cur, ok := byMinute[k]
		if !ok {
			minuteOrder = append(minuteOrder, k)
			byMinute[k] = e
			continue
		}
		if e.Timestamp > cur.Timestamp {
			byMinute[k] = e
		}
	}

	out := make([]Entry, 0, len(minuteOrder))
	for _, k := range minuteOrder {
		out = append(out, byMinute[k])
	}
	SortByTimestampDesc(out)
	return out
}

// SortByTimestampDesc orders entries newest first, in place.
func SortByTimestampDesc(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp > entries[j].Timestamp
	})
}
