package workflow

import "errors"

var (
	ErrNotActive     = errors.New("workflow is not active")
	ErrTerminalStage = errors.New("workflow is at the terminal stage")
	ErrNotAtTerminal = errors.New("workflow has not reached the terminal stage")
	ErrUnauthorized  = errors.New("requester role is not authorized for this transition")
	ErrMissingReason = errors.New("a reason is required for backward transitions")
	ErrInvalidTarget = errors.New("target stage is not a valid backward target")
	ErrStageConflict = errors.New("workflow stage changed concurrently")
)
