package reconcile

import "github.com/google/uuid"

var positiveInterest = map[InterestStatus]struct{}{
	InterestInterested:       {},
	InterestMeetingBooked:    {},
	InterestMeetingCompleted: {},
	InterestClosed:           {},
}

// An explicit non-positive classification suppresses the reply-count rule.
var nonPositiveInterest = map[InterestStatus]struct{}{
	InterestNotInterested: {},
	InterestWrongPerson:   {},
	InterestLost:          {},
	InterestOutOfOffice:   {},
	InterestNeutral:       {},
}

// IsPositiveInterest reports whether interest alone marks a positive reply.
func IsPositiveInterest(interest InterestStatus) bool {
	_, ok := positiveInterest[interest]
	return ok
}

// IsPositive classifies a lead as a positive reply: the interest status is in
// the positive set, or the lead has replied, is not in a terminal status and
// has not been classified as non-positive.
func IsPositive(interest InterestStatus, replyCount int, status Status) bool {
	if IsPositiveInterest(interest) {
		return true
	}
	if _, vetoed := nonPositiveInterest[interest]; vetoed {
		return false
	}
	return replyCount > 0 && !status.IsTerminal()
}

// ResyncPlan is the projected outcome of a reset-then-remark pass.
type ResyncPlan struct {
	// Reset holds every lead currently flagged positive in scope.
	Reset []uuid.UUID
	// Remark holds the distinct leads the authoritative list resolves to.
	Remark []uuid.UUID
	// Retained were positive before and stay positive.
	Retained int
	// Retracted were positive before and will be cleared.
	Retracted int
	// Added were not positive before and will be flagged.
	Added int
	// ExpectedPositive is the positive count in scope after the pass.
	ExpectedPositive int
}

// PlanPositiveResync projects a reset-then-remark pass from the currently
// positive lead ids and the ids resolved from the provider's positive list.
func PlanPositiveResync(current []uuid.UUID, remark []uuid.UUID) ResyncPlan {
	currentSet := make(map[uuid.UUID]struct{}, len(current))
	plan := ResyncPlan{Reset: make([]uuid.UUID, 0, len(current))}
	for _, id := range current {
		if _, seen := currentSet[id]; seen {
			continue
		}
		currentSet[id] = struct{}{}
		plan.Reset = append(plan.Reset, id)
	}

	remarkSet := make(map[uuid.UUID]struct{}, len(remark))
	plan.Remark = make([]uuid.UUID, 0, len(remark))
	for _, id := range remark {
		if _, seen := remarkSet[id]; seen {
			continue
		}
		remarkSet[id] = struct{}{}
		plan.Remark = append(plan.Remark, id)
		if _, wasPositive := currentSet[id]; wasPositive {
			plan.Retained++
		} else {
			plan.Added++
		}
	}

	plan.Retracted = len(plan.Reset) - plan.Retained
	plan.ExpectedPositive = len(plan.Remark)
	return plan
}
