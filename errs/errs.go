// Package errs defines the closed set of error kinds the rest of the
// modules raise. Every kind is user-surfaceable: the dispatcher maps it
// to a JSON body without needing to understand the underlying cause.
package errs

import "fmt"

// Kind identifies a distinct, user-surfaceable error category.
type Kind string

const (
	// Path resolution
	WrongQuery        Kind = "WrongQuery"
	NoIdFoundOnRequest Kind = "NoIdFoundOnRequest"
	MissingID         Kind = "MissingID"
	MissingQuery      Kind = "MissingQuery"
	MethodNotFound    Kind = "MethodNotFound"

	// Storage
	CFNotFound          Kind = "CFNotFound"
	CannotCreateKeyspace Kind = "CannotCreateKeyspace"
	CannotRetrieveCF    Kind = "CannotRetrieveCF"
	NotFound            Kind = "NotFound"
	Put                 Kind = "Put"
	Db                  Kind = "Db"

	// Channel
	ChannelNotFound Kind = "ChannelNotFound"
	EmptyMutator    Kind = "EmptyMutator"
	ChannelError    Kind = "ChannelError"

	// Mutator-specific (§4.1 of the spec)
	FieldNotFoundInJSON            Kind = "FieldNotFoundInJSON"
	NotString                      Kind = "NotString"
	NotAnArray                     Kind = "NotAnArray"
	NotI64                         Kind = "NotI64"
	NotBool                        Kind = "NotBool"
	EmptyArray                     Kind = "EmptyArray"
	SortNotPossible                Kind = "SortNotPossible"
	SplitEmptySeparator            Kind = "SplitEmptySeparator"
	GrokNoMatches                  Kind = "GrokNoMatches"
	UpperLowerCaseTypeNotRecognized Kind = "UpperLowerCaseTypeNotRecognized"
	JoinTypeNotRecognized          Kind = "JoinTypeNotRecognized"
	CannotRemoveField              Kind = "CannotRemoveField"
	RequiredFieldNotFound          Kind = "RequiredFieldNotFound"
	ParsingError                   Kind = "ParsingError"

	// Serialization
	SerdeError      Kind = "SerdeError"
	Utf8Error       Kind = "Utf8Error"
	BodyParsingError Kind = "BodyParsingError"

	// SQL
	SqlError Kind = "SqlError"

	// Aggregate
	Multi Kind = "Multi"
)

// Error is the concrete error type carried through the stack. Cause wraps
// the underlying error (if any); Key optionally names the offending key,
// field or keyspace for diagnostic messages.
type Error struct {
	Kind  Kind
	Key   string
	Cause error
}

func (e *Error) Error() string {
	if e.Key != "" && e.Cause != nil {
		return fmt.Sprintf("%s: %q: %v", e.Kind, e.Key, e.Cause)
	}
	if e.Key != "" {
		return fmt.Sprintf("%s: %q", e.Kind, e.Key)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no key or wrapped cause.
func New(k Kind) *Error { return &Error{Kind: k} }

// WithKey builds an *Error naming the offending key/field.
func WithKey(k Kind, key string) *Error { return &Error{Kind: k, Key: key} }

// Wrap builds an *Error around an underlying cause.
func Wrap(k Kind, cause error) *Error { return &Error{Kind: k, Cause: cause} }

// WrapKey builds an *Error naming a key and wrapping a cause.
func WrapKey(k Kind, key string, cause error) *Error {
	return &Error{Kind: k, Key: key, Cause: cause}
}

// KindOf extracts the Kind from err, falling back to Db for unrecognized
// errors so the dispatcher always has something to report.
func KindOf(err error) Kind {
	var e *Error
	if As(err, &e) {
		return e.Kind
	}
	return Db
}

// As walks err's single-error Unwrap chain and stores the first *Error
// it finds in target, reporting whether one was found.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Multiple concatenates several per-item write errors into one Multi error,
// mirroring the aggregate error kind used when a batch write partially fails.
func Multiple(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	msg := ""
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += e.Error()
	}
	return &Error{Kind: Multi, Cause: fmt.Errorf("%s", msg)}
}
