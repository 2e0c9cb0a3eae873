package service

import (
	"errors"
	"fmt"

	"github.com/spec-kit/repair-service/internal/domain"
)

// ErrIllegalTransition matches every *TransitionError.
var ErrIllegalTransition = errors.New("illegal status transition")

// TransitionError describes a rejected status change.
type TransitionError struct {
	From domain.RequestStatus
	To   domain.RequestStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move repair request from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

var allowedTransitions = map[domain.RequestStatus][]domain.RequestStatus{
	domain.StatusPending:    {domain.StatusInProgress, domain.StatusCancelled},
	domain.StatusInProgress: {domain.StatusCompleted, domain.StatusCancelled},
	domain.StatusCompleted:  {},
	domain.StatusCancelled:  {},
}

// IsTerminal reports whether no transition leaves status.
func IsTerminal(status domain.RequestStatus) bool {
	next, ok := allowedTransitions[status]
	return ok && len(next) == 0
}

// CheckTransition returns nil when current may move to next. Setting the
// current value again is always accepted.
func CheckTransition(current, next domain.RequestStatus) error {
	if current == next {
		return nil
	}
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return nil
		}
	}
	return &TransitionError{From: current, To: next}
}

// NextStatuses lists the statuses reachable from current.
func NextStatuses(current domain.RequestStatus) []domain.RequestStatus {
	return append([]domain.RequestStatus{}, allowedTransitions[current]...)
}
