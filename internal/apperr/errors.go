package apperr

import "errors"

// ErrInvalid is returned when the input fails domain validation.
var ErrInvalid = errors.New("invalid input")

// ErrNotFound indicates that the requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a conditional update observed a state or version
// other than the one it expected. Callers map it to the race-specific
// outcome for their transition.
var ErrConflict = errors.New("conflict")

// ErrUnauthorized indicates the acting identity does not match the role or
// binding required for the requested operation.
var ErrUnauthorized = errors.New("unauthorized")

// ErrNotApproved is returned for courier actions attempted before the
// external approval workflow has approved the courier.
var ErrNotApproved = errors.New("courier not approved")

// ErrInvalidTransition indicates a state machine guard rejected the
// requested transition.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrAlreadyAssigned is returned to a courier that lost the accept race:
// the order moved past offering before their accept was applied.
var ErrAlreadyAssigned = errors.New("order already assigned")

// ErrOfferExpired is returned when an accept arrives after the offer
// deadline, even if no other courier has accepted yet.
var ErrOfferExpired = errors.New("offer expired")

// ErrOrderCancelled is returned when an accept or status update targets an
// order the store has cancelled.
var ErrOrderCancelled = errors.New("order cancelled")

// ErrNoEligibleCandidates indicates a ranking round found zero couriers.
var ErrNoEligibleCandidates = errors.New("no eligible candidates")

// ErrDistanceUnavailable indicates the distance provider failed for a
// candidate. Recovered locally by skipping the candidate, never fatal to a
// round.
var ErrDistanceUnavailable = errors.New("distance provider unavailable")

// IsExpected reports whether err is a guard violation or race loss that is
// part of normal dispatch traffic and must not be logged as an error.
func IsExpected(err error) bool {
	for _, e := range []error{
		ErrInvalidTransition,
		ErrAlreadyAssigned,
		ErrOfferExpired,
		ErrOrderCancelled,
		ErrNoEligibleCandidates,
		ErrNotApproved,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
