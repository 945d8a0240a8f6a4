package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/nekogravitycat/reservation-engine/internal/pkg/apperror"
	"github.com/nekogravitycat/reservation-engine/internal/resource"
	"github.com/nekogravitycat/reservation-engine/internal/user"
)

// transitions lists the statuses reachable from each status. Completed,
// rejected and cancelled are terminal.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved: {StatusCancelled, StatusCompleted},
}

// InitialStatus is pending for restricted resources and approved otherwise.
func InitialStatus(res *resource.Resource) Status {
	if res.IsRestricted {
		return StatusPending
	}
	return StatusApproved
}

// CanTransition reports whether the lifecycle permits from -> to.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Authorize checks that actor may move b to status to on resource res.
//
// Approving and rejecting belong to the resource's authorities (its owner or a
// system admin), who must not be the requester. Cancelling is open to the
// requester and the authorities. Completion is an administrative override.
func Authorize(b *Booking, res *resource.Resource, actor user.Actor, to Status) error {
	authority := res.IsAuthority(actor.UserID, actor.IsSystemAdmin)

	switch to {
	case StatusApproved, StatusRejected:
		if actor.UserID == b.RequesterID {
			return ErrUnauthorizedTransition
		}
		if !authority {
			return ErrPermissionDenied
		}
	case StatusCancelled:
		if actor.UserID != b.RequesterID && !authority {
			return ErrPermissionDenied
		}
	case StatusCompleted:
		if !authority {
			return ErrPermissionDenied
		}
	default:
		return invalidTransition(b.Status, to)
	}
	return nil
}

// Transition moves b to status to, recording the decision maker and notes for
// approvals and rejections. Re-deciding with the status the booking already
// has and identical notes changes nothing and returns false.
func Transition(b *Booking, to Status, actor user.Actor, notes *string, now time.Time) (bool, error) {
	notes = normalizeNotes(notes)
	decision := to == StatusApproved || to == StatusRejected

	if decision && b.Status == to && sameNotes(b.DecisionNotes, notes) {
		return false, nil
	}
	if !CanTransition(b.Status, to) {
		return false, invalidTransition(b.Status, to)
	}

	b.Status = to
	if decision {
		by := actor.UserID
		b.DecisionBy = &by
		b.DecisionNotes = notes
	}
	b.UpdatedAt = now
	return true, nil
}

func invalidTransition(from, to Status) error {
	return apperror.WrapAs(fmt.Errorf("booking cannot move from %s to %s", from, to), ErrInvalidTransition)
}

func normalizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*notes)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func sameNotes(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
