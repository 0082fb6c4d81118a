package request

import "sort"

// Scope identifies what a queue is keyed on.
type Scope string

const (
	ScopeItem     Scope = "item"
	ScopeInstance Scope = "instance"
)

// Queue is the ordered list of open requests competing for an item or title.
// Positions are 1..N. Version increments on every committed change.
type Queue struct {
	Scope    Scope     `json:"scope"`
	Key      string    `json:"key"`
	Requests []Request `json:"requests"`
	Version  int64     `json:"version"`
}

// IsTitleScoped reports whether the queue spans all copies of an instance.
func (q *Queue) IsTitleScoped() bool { return q.Scope == ScopeInstance }

// Size returns the number of requests in the queue.
func (q *Queue) Size() int { return len(q.Requests) }

// Head returns the request at position 1.
func (q *Queue) Head() (Request, bool) {
	for i := range q.Requests {
		if q.Requests[i].Position == 1 {
			return q.Requests[i], true
		}
	}
	return Request{}, false
}

// ByID returns the request with the given ID.
func (q *Queue) ByID(id string) (Request, bool) {
	for i := range q.Requests {
		if q.Requests[i].ID == id {
			return q.Requests[i], true
		}
	}
	return Request{}, false
}

// FulfillingCount returns how many requests have begun fulfillment.
func (q *Queue) FulfillingCount() int {
	n := 0
	for i := range q.Requests {
		if q.Requests[i].BeganFulfillment() {
			n++
		}
	}
	return n
}

// Sorted returns the requests ordered by position.
func (q *Queue) Sorted() []Request {
	out := make([]Request, len(q.Requests))
	copy(out, q.Requests)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// Add appends r at the end of the queue and returns the copy stored.
func (q *Queue) Add(r Request) Request {
	r.Position = len(q.Requests) + 1
	q.Requests = append(q.Requests, r)
	return r
}

// Remove drops the request with the given ID and closes the gap it leaves.
func (q *Queue) Remove(id string) bool {
	sorted := q.Sorted()
	kept := sorted[:0]
	removed := false
	for _, r := range sorted {
		if r.ID == id {
			removed = true
			continue
		}
		kept = append(kept, r)
	}
	for i := range kept {
		kept[i].Position = i + 1
	}
	q.Requests = kept
	return removed
}

// Replace swaps in r for the request with the same ID, keeping its position.
func (q *Queue) Replace(r Request) (Request, bool) {
	for i := range q.Requests {
		if q.Requests[i].ID == r.ID {
			r.Position = q.Requests[i].Position
			q.Requests[i] = r
			return r, true
		}
	}
	return Request{}, false
}

// ReorderEntry assigns a new position to one request in a queue.
type ReorderEntry struct {
	ID          string `json:"id"`
	NewPosition int    `json:"newPosition"`
}

// ReorderSubmission is a client-supplied reordering of a whole queue.
type ReorderSubmission struct {
	Entries []ReorderEntry `json:"reorderedQueue"`
}

// Apply returns a copy of q with the positions from s. Requests not named in
// s keep their position. Callers validate s first.
func (q *Queue) Apply(s ReorderSubmission) Queue {
	positions := make(map[string]int, len(s.Entries))
	for _, e := range s.Entries {
		positions[e.ID] = e.NewPosition
	}
	out := Queue{Scope: q.Scope, Key: q.Key, Version: q.Version, Requests: make([]Request, len(q.Requests))}
	for i, r := range q.Requests {
		if p, ok := positions[r.ID]; ok {
			r.Position = p
		}
		out.Requests[i] = r
	}
	out.Requests = out.Sorted()
	return out
}
