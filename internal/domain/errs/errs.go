// Package errs defines the analytics error taxonomy.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by who is at fault and how it is handled.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindDataValidation: null/empty/malformed series. Caller fault, never retried.
	KindDataValidation
	// KindConfiguration: bad horizon, period, confidence level or window token.
	KindConfiguration
	// KindComputation: numerical failure. Retried once on a simpler model.
	KindComputation
	// KindCache: internal cache failure. Always absorbed.
	KindCache
)

func (k Kind) String() string {
	switch k {
	case KindDataValidation:
		return "data_validation"
	case KindConfiguration:
		return "configuration"
	case KindComputation:
		return "computation"
	case KindCache:
		return "cache"
	default:
		return "unknown"
	}
}

var (
	ErrDataValidation = errors.New("data validation error")
	ErrConfiguration  = errors.New("configuration error")
	ErrComputation    = errors.New("computation error")
	ErrCache          = errors.New("cache error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindDataValidation:
		return ErrDataValidation
	case KindConfiguration:
		return ErrConfiguration
	case KindComputation:
		return ErrComputation
	case KindCache:
		return ErrCache
	default:
		return nil
	}
}

// Error carries the kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// E wraps err with kind and op.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Validation(op, format string, a ...any) error {
	return &Error{Kind: KindDataValidation, Op: op, Err: fmt.Errorf(format, a...)}
}

func Configuration(op, format string, a ...any) error {
	return &Error{Kind: KindConfiguration, Op: op, Err: fmt.Errorf(format, a...)}
}

func Computation(op, format string, a ...any) error {
	return &Error{Kind: KindComputation, Op: op, Err: fmt.Errorf(format, a...)}
}

func Cache(op, format string, a ...any) error {
	return &Error{Kind: KindCache, Op: op, Err: fmt.Errorf(format, a...)}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether a fallback attempt is allowed.
func IsRetryable(err error) bool { return KindOf(err) == KindComputation }
