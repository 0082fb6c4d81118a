package validation

import (
	"sort"
	"strconv"

	"github.com/Strob0t/circulation/internal/domain/failure"
	"github.com/Strob0t/circulation/internal/domain/request"
	"github.com/Strob0t/circulation/internal/domain/result"
)

// Reorder failure messages.
const (
	MsgQueueInconsistent       = "There is inconsistency between provided reordered queue and existing queue."
	MsgPositionsNotSequential  = "Positions must have sequential order."
	MsgPageDisplaced           = "Page requests can not be displaced from position 1."
	MsgFulfillingDisplaced     = "Requests can not be displaced from position 1 when fulfillment begun."
	MsgFulfillingDisplacedTop  = "Requests can not be displaced from top positions when fulfillment begun."
	MsgTitleLevelReorderRefuse = "Refuse to reorder request queue, TLR feature status is DISABLED."
)

// Reordering pairs a submission with the stored queue it targets.
type Reordering struct {
	Submission request.ReorderSubmission
	Queue      *request.Queue
}

// ReorderChecks lists the queue checks in the order they run. The first
// failure stops the reorder.
func ReorderChecks(titleLevelEnabled bool) []func(Reordering) result.Result[Reordering] {
	return []func(Reordering) result.Result[Reordering]{
		titleLevelAllowed(titleLevelEnabled),
		QueueIsFound,
		QueueIsConsistent,
		PositionsAreSequential,
		FulfillingRequestsPositioning,
		PageRequestsPositioning,
	}
}

// ValidateReorder runs every check against sub and q and, on success,
// returns q with the submitted positions applied.
func ValidateReorder(sub request.ReorderSubmission, q *request.Queue, titleLevelEnabled bool) result.Result[request.Queue] {
	r := result.Succeeded(Reordering{Submission: sub, Queue: q})
	for _, check := range ReorderChecks(titleLevelEnabled) {
		r = result.Next(r, check)
	}
	return result.Map(r, func(ro Reordering) request.Queue { return ro.Queue.Apply(ro.Submission) })
}

func titleLevelAllowed(enabled bool) func(Reordering) result.Result[Reordering] {
	return func(ro Reordering) result.Result[Reordering] {
		if ro.Queue != nil && ro.Queue.IsTitleScoped() && !enabled {
			return result.Failed[Reordering](failure.Single(MsgTitleLevelReorderRefuse, "instanceId", ro.Queue.Key))
		}
		return result.Succeeded(ro)
	}
}

// QueueIsFound fails when there is no stored request to reorder.
func QueueIsFound(ro Reordering) result.Result[Reordering] {
	if ro.Queue == nil || ro.Queue.Size() == 0 {
		key := ""
		if ro.Queue != nil {
			key = ro.Queue.Key
		}
		return result.Failed[Reordering](failure.NotFound("request queue", key))
	}
	return result.Succeeded(ro)
}

// QueueIsConsistent fails unless the submission names every stored request
// exactly once and nothing else.
func QueueIsConsistent(ro Reordering) result.Result[Reordering] {
	return result.Succeeded(ro).FailWhen(
		func(ro Reordering) result.Result[bool] { return result.Bool(!sameRequests(ro)) },
		func(Reordering) failure.Cause { return failure.Single(MsgQueueInconsistent, "reorderedQueue", "") },
	)
}

func sameRequests(ro Reordering) bool {
	if len(ro.Submission.Entries) != ro.Queue.Size() {
		return false
	}
	remaining := make(map[string]int, ro.Queue.Size())
	for _, r := range ro.Queue.Requests {
		remaining[r.ID]++
	}
	for _, e := range ro.Submission.Entries {
		if remaining[e.ID] == 0 {
			return false
		}
		remaining[e.ID]--
	}
	return true
}

// PositionsAreSequential fails unless the submitted positions are exactly 1..N.
func PositionsAreSequential(ro Reordering) result.Result[Reordering] {
	positions := make([]int, 0, len(ro.Submission.Entries))
	for _, e := range ro.Submission.Entries {
		positions = append(positions, e.NewPosition)
	}
	sort.Ints(positions)
	for i, p := range positions {
		if p != i+1 {
			return result.Failed[Reordering](failure.Single(MsgPositionsNotSequential, "newPosition", strconv.Itoa(p)))
		}
	}
	return result.Succeeded(ro)
}

// FulfillingRequestsPositioning keeps requests whose fulfillment began at the
// top. An item queue pins such a request to position 1; a title queue with k
// of them requires them to occupy positions 1..k in any order.
func FulfillingRequestsPositioning(ro Reordering) result.Result[Reordering] {
	k := ro.Queue.FulfillingCount()
	if k == 0 {
		return result.Succeeded(ro)
	}
	for _, e := range ro.Submission.Entries {
		stored, _ := ro.Queue.ByID(e.ID)
		if !stored.BeganFulfillment() {
			continue
		}
		if !ro.Queue.IsTitleScoped() && e.NewPosition != 1 {
			return result.Failed[Reordering](failure.Single(MsgFulfillingDisplaced, "newPosition", strconv.Itoa(e.NewPosition)))
		}
		if ro.Queue.IsTitleScoped() && e.NewPosition > k {
			return result.Failed[Reordering](failure.Single(MsgFulfillingDisplacedTop, "newPosition", strconv.Itoa(e.NewPosition)))
		}
	}
	return result.Succeeded(ro)
}

// PageRequestsPositioning pins a page request in an item queue to position 1.
func PageRequestsPositioning(ro Reordering) result.Result[Reordering] {
	if ro.Queue.IsTitleScoped() {
		return result.Succeeded(ro)
	}
	for _, e := range ro.Submission.Entries {
		stored, _ := ro.Queue.ByID(e.ID)
		if stored.Type == request.TypePage && e.NewPosition != 1 {
			return result.Failed[Reordering](failure.Single(MsgPageDisplaced, "newPosition", strconv.Itoa(e.NewPosition)))
		}
	}
	return result.Succeeded(ro)
}
