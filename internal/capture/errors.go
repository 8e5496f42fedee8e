package capture

import "errors"

// ErrConstruction is wrapped by every worker setup failure.
var ErrConstruction = errors.New("capture construction failed")

var (
	ErrDeviceNotFound   = errors.New("no default input device")
	ErrNoMatchingConfig = errors.New("no matching input stream config")
	ErrStreamBuild      = errors.New("failed to build input stream")
	ErrStreamStart      = errors.New("failed to start input stream")
	ErrStreamStopped    = errors.New("input stream stopped unexpectedly")
)

// constructionError joins a specific setup failure with ErrConstruction so
// callers can match either.
type constructionError struct {
	kind  error
	cause error
}

func (e *constructionError) Error() string {
	if e.cause == nil {
		return ErrConstruction.Error() + ": " + e.kind.Error()
	}

	return ErrConstruction.Error() + ": " + e.kind.Error() + ": " + e.cause.Error()
}

func (e *constructionError) Unwrap() []error {
	if e.cause == nil {
		return []error{ErrConstruction, e.kind}
	}

	return []error{ErrConstruction, e.kind, e.cause}
}

func setupError(kind, cause error) error {
	return &constructionError{kind: kind, cause: cause}
}
