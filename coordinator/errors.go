package coordinator

import "errors"

// Error kinds reported to the boundary layer. Match with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrContentUnavailable = errors.New("content unavailable")
)

// requestError carries a caller-facing message and the kind it belongs to
type requestError struct {
	kind error
	msg  string
	err  error
}

func (e *requestError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *requestError) Is(target error) bool {
	return target == e.kind
}

func (e *requestError) Unwrap() error {
	return e.err
}

func notFound(msg string) error {
	return &requestError{kind: ErrNotFound, msg: msg}
}

func forbidden(msg string) error {
	return &requestError{kind: ErrForbidden, msg: msg}
}

func contentUnavailable(msg string, err error) error {
	return &requestError{kind: ErrContentUnavailable, msg: msg, err: err}
}
