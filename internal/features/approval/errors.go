package approval

import "errors"

var (
	ErrRequestNotFound = errors.New("approval request not found")
	// ErrDuplicateActiveRequest blocks a second open request for the same
	// approvable item.
	ErrDuplicateActiveRequest = errors.New("an active approval request already exists for this item")
	// ErrAlreadyDecided fires when the request moved on between read and
	// write: another approver won the race, or the request is terminal.
	ErrAlreadyDecided       = errors.New("request already decided at this level")
	ErrUnauthorizedApprover = errors.New("actor is not authorized to decide at the current level")
	ErrDelegationNotAllowed = errors.New("this workflow does not allow delegation")
	ErrNotReturnable        = errors.New("only returned requests can be resubmitted")
	ErrInvalidDecision      = errors.New("unknown decision action")
)
