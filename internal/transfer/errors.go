package transfer

import "errors"

// Kind names the stage of a relay that failed.
type Kind int

const (
	KindDownload Kind = iota + 1
	KindAuthorization
	KindUpload
	KindPersist
)

func (k Kind) String() string {
	switch k {
	case KindDownload:
		return "download"
	case KindAuthorization:
		return "authorization"
	case KindUpload:
		return "upload"
	case KindPersist:
		return "persist"
	default:
		return "unknown"
	}
}

// Error tags a failure with the stage it came from.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Kind.String() + " failed: " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap tags err with kind. A nil err stays nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the stage carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var tErr *Error
	if errors.As(err, &tErr) {
		return tErr.Kind, true
	}
	return 0, false
}
