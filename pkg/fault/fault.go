// Package fault defines the error categories used by the bridge verification core.
//
// Transport errors stay ordinary wrapped errors. Everything else is a *Fault carrying a Kind.
// Fatal kinds (ConsensusMismatch, InvariantViolation, Overflow, and Decode of foundational state)
// must never be caught-and-continued: a caller either aborts or degrades into a halted state.
package fault

import (
	"errors"
	"fmt"

	errorsmod "cosmossdk.io/errors"
)

const codespace = "bridgewatch"

var (
	ErrTransport          = errorsmod.Register(codespace, 2, "transport failure")
	ErrDecode             = errorsmod.Register(codespace, 3, "decode failure")
	ErrConsensusMismatch  = errorsmod.Register(codespace, 4, "validator set consensus mismatch")
	ErrTimeout            = errorsmod.Register(codespace, 5, "deadline exceeded")
	ErrInvariantViolation = errorsmod.Register(codespace, 6, "invariant violation")
	ErrOverflow           = errorsmod.Register(codespace, 7, "numeric overflow, bridge halt")
	ErrNotFound           = errorsmod.Register(codespace, 8, "state not found")
)

// Kind classifies a Fault.
type Kind int

const (
	KindTransport Kind = iota + 1
	KindDecode
	KindConsensusMismatch
	KindTimeout
	KindInvariantViolation
	KindOverflow
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindDecode:
		return "decode"
	case KindConsensusMismatch:
		return "consensus-mismatch"
	case KindTimeout:
		return "timeout"
	case KindInvariantViolation:
		return "invariant-violation"
	case KindOverflow:
		return "overflow"
	case KindNotFound:
		return "not-found"
	default:
		return "unknown"
	}
}

func (k Kind) registered() *errorsmod.Error {
	switch k {
	case KindTransport:
		return ErrTransport
	case KindDecode:
		return ErrDecode
	case KindConsensusMismatch:
		return ErrConsensusMismatch
	case KindTimeout:
		return ErrTimeout
	case KindInvariantViolation:
		return ErrInvariantViolation
	case KindOverflow:
		return ErrOverflow
	default:
		return ErrNotFound
	}
}

// Fault is a classified failure. Fatal faults signal that the bridge must not proceed.
type Fault struct {
	Kind   Kind
	Fatal  bool
	Reason string
	cause  error
}

func (f *Fault) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Reason, f.cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Reason)
}

// Unwrap exposes both the registered kind error and the underlying cause to errors.Is.
func (f *Fault) Unwrap() []error {
	if f.cause != nil {
		return []error{f.Kind.registered(), f.cause}
	}
	return []error{f.Kind.registered()}
}

// ABCICode returns the registered error code of the fault kind.
func (f *Fault) ABCICode() uint32 {
	return f.Kind.registered().ABCICode()
}

func newFault(kind Kind, fatal bool, cause error, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Fatal: fatal, Reason: fmt.Sprintf(format, args...), cause: cause}
}

// ConsensusMismatch reports that the two chains disagree on a checkpointed validator set.
func ConsensusMismatch(format string, args ...any) *Fault {
	return newFault(KindConsensusMismatch, true, nil, format, args...)
}

// InvariantViolation reports a broken cross-chain invariant.
func InvariantViolation(format string, args ...any) *Fault {
	return newFault(KindInvariantViolation, true, nil, format, args...)
}

// Overflow reports an on-chain integer that does not fit its local representation.
func Overflow(format string, args ...any) *Fault {
	return newFault(KindOverflow, true, nil, format, args...)
}

// Decode reports a payload that could not be decoded. fatal marks foundational state.
func Decode(fatal bool, cause error, format string, args ...any) *Fault {
	return newFault(KindDecode, fatal, cause, format, args...)
}

// NotFound reports missing state that the other chain claims exists. It is always fatal.
func NotFound(format string, args ...any) *Fault {
	return newFault(KindNotFound, true, nil, format, args...)
}

// Timeout reports an expired deadline. It is an expected outcome, not fatal.
func Timeout(format string, args ...any) *Fault {
	return newFault(KindTimeout, false, nil, format, args...)
}

// Transport wraps a network-level failure.
func Transport(cause error, format string, args ...any) *Fault {
	return newFault(KindTransport, false, cause, format, args...)
}

// As returns the first *Fault in err's chain.
func As(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// IsFatal reports whether err carries a fatal fault.
func IsFatal(err error) bool {
	f, ok := As(err)
	return ok && f.Fatal
}

// IsKind reports whether err carries a fault of the given kind.
func IsKind(err error, kind Kind) bool {
	f, ok := As(err)
	return ok && f.Kind == kind
}
