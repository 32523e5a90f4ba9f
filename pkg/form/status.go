package form

import "errors"

// Status is the submission state of a form.
type Status int

const (
	StatusIdle Status = iota
	StatusValidating
	StatusValid
	StatusInvalid
	StatusSubmitting
	StatusSubmitSucceeded
	StatusSubmitFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusValidating:
		return "validating"
	case StatusValid:
		return "valid"
	case StatusInvalid:
		return "invalid"
	case StatusSubmitting:
		return "submitting"
	case StatusSubmitSucceeded:
		return "submit_succeeded"
	case StatusSubmitFailed:
		return "submit_failed"
	default:
		return "unknown"
	}
}

// Transition records one status change.
type Transition struct {
	From Status
	To   Status
}

// canTransition encodes the allowed edges. Validating may be re-entered from
// any resting state; Submitting only from Valid.
func canTransition(from, to Status) bool {
	switch to {
	case StatusValidating:
		return from != StatusSubmitting
	case StatusValid, StatusInvalid:
		return from == StatusValidating
	case StatusSubmitting:
		return from == StatusValid
	case StatusSubmitSucceeded, StatusSubmitFailed:
		return from == StatusSubmitting
	case StatusIdle:
		return from == StatusValid || from == StatusSubmitSucceeded || from == StatusSubmitFailed
	default:
		return false
	}
}

// ErrorKind classifies a reported problem.
type ErrorKind string

const (
	ErrorKindFormat    ErrorKind = "FormatError"
	ErrorKindRequired  ErrorKind = "RequiredFieldError"
	ErrorKindRateLimit ErrorKind = "RateLimitExceeded"
	ErrorKindSubmit    ErrorKind = "SubmitFailed"
)

// Issue is a field or form level problem. Field is empty for form-level
// issues.
type Issue struct {
	Field   string    `json:"field,omitempty"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

const (
	MessageRateLimited      = "rate limit exceeded"
	MessageSubmitInProgress = "submission in progress"
)

var (
	ErrInvalid          = errors.New("form: validation failed")
	ErrRateLimited      = errors.New("form: rate limit exceeded")
	ErrSubmitInProgress = errors.New("form: submission in progress")
)
