// Package status defines the uniform tagged error kind returned across the
// engine boundary. Failures the engine detects itself are a *Status carrying
// a Kind, a message, and (optionally) the collection/keyspace/key it
// concerns. Some errors from lower layers (storage iteration, a decode error
// during index backfill, context cancellation) are returned unwrapped;
// KindOf reports those as InternalError.
package status

import (
	"fmt"
	"strings"
)

// Kind classifies a Status. The zero Kind is Ok and is never wrapped in a
// *Status value returned from a function (nil means success).
type Kind int

const (
	Ok Kind = iota
	NotFound
	Corruption
	NotSupported
	InvalidArgument
	IoError
	InternalError
)

func (k Kind) String() string {
	switch k {
	case Ok:
		return "Ok"
	case NotFound:
		return "NotFound"
	case Corruption:
		return "Corruption"
	case NotSupported:
		return "NotSupported"
	case InvalidArgument:
		return "InvalidArgument"
	case IoError:
		return "IoError"
	case InternalError:
		return "InternalError"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Status is the tagged error value returned by every public operation.
type Status struct {
	Kind       Kind
	Collection string
	Keyspace   string
	Key        string
	Msg        string
	Err        error
}

func (s *Status) Unwrap() error {
	return s.Err
}

func (s *Status) Error() string {
	var buf strings.Builder
	buf.WriteString(s.Kind.String())
	if s.Collection != "" {
		buf.WriteByte(' ')
		buf.WriteString(s.Collection)
	}
	if s.Keyspace != "" {
		buf.WriteByte('.')
		buf.WriteString(s.Keyspace)
	}
	if s.Key != "" {
		buf.WriteByte('/')
		buf.WriteString(s.Key)
	}
	if s.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(s.Msg)
	}
	if s.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(s.Err.Error())
	}
	return buf.String()
}

// New builds a *Status with the given kind and formatted message.
func New(kind Kind, format string, args ...any) *Status {
	return &Status{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds a *Status that wraps an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Status {
	return &Status{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// WithCollection annotates a *Status with the collection it concerns.
func (s *Status) WithCollection(name string) *Status {
	s.Collection = name
	return s
}

// WithKeyspace annotates a *Status with the keyspace it concerns.
func (s *Status) WithKeyspace(name string) *Status {
	s.Keyspace = name
	return s
}

// WithKey annotates a *Status with the document/index key it concerns.
func (s *Status) WithKey(key string) *Status {
	s.Key = key
	return s
}

// Is reports whether err is a *Status of the given kind.
func Is(err error, kind Kind) bool {
	s, ok := err.(*Status)
	if !ok {
		return false
	}
	return s.Kind == kind
}

// KindOf returns the Kind of err if it is a *Status, else InternalError.
func KindOf(err error) Kind {
	if err == nil {
		return Ok
	}
	if s, ok := err.(*Status); ok {
		return s.Kind
	}
	return InternalError
}
