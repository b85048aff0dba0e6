package coreplaylist

import (
	"sort"
)

// OrderPair is one (id, order) entry of a sibling arrangement, either as
// requested by a client or as canonically assigned by the normalizer.
type OrderPair struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
}

// Renumber assigns the canonical 1-based contiguous order to ids in slice
// order. Every sibling is renumbered, not just the ones that moved, so the
// result is dense even if the caller's view was stale.
func Renumber(ids []string) []OrderPair {
	out := make([]OrderPair, len(ids))
	for i, id := range ids {
		out[i] = OrderPair{ID: id, Order: i + 1}
	}
	return out
}

// MoveID splices id from its current position to index toIndex (clamped to
// the slice bounds) and returns the new sequence. Unknown ids leave the
// sequence untouched.
func MoveID(ids []string, id string, toIndex int) []string {
	from := indexOf(ids, id)
	if from < 0 {
		return append([]string(nil), ids...)
	}
	out := make([]string, 0, len(ids))
	out = append(out, ids[:from]...)
	out = append(out, ids[from+1:]...)

	if toIndex < 0 {
		toIndex = 0
	}
	if toIndex > len(out) {
		toIndex = len(out)
	}
	out = append(out, "")
	copy(out[toIndex+1:], out[toIndex:])
	out[toIndex] = id
	return out
}

// InsertIDs splices newIDs into ids so the first inserted element ends up at
// 1-based order startOrder. startOrder <= 0 appends at the tail; siblings at
// or after the insertion point shift up by len(newIDs).
func InsertIDs(ids []string, newIDs []string, startOrder int) []string {
	at := len(ids)
	if startOrder > 0 && startOrder-1 < at {
		at = startOrder - 1
	}
	out := make([]string, 0, len(ids)+len(newIDs))
	out = append(out, ids[:at]...)
	out = append(out, newIDs...)
	out = append(out, ids[at:]...)
	return out
}

// RemoveID deletes id and closes the gap. Remaining siblings keep their
// relative order.
func RemoveID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// SequenceFromRequested resolves a client-submitted arrangement into a
// canonical id sequence. Entries are sorted by their requested order; when
// two requested orders collide the input array index wins, so the result
// never carries duplicate positions.
func SequenceFromRequested(items []OrderPair) []string {
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return items[idx[a]].Order < items[idx[b]].Order
	})
	out := make([]string, len(items))
	for i, j := range idx {
		out[i] = items[j].ID
	}
	return out
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
