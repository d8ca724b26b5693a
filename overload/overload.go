// Package overload defines the error-kind discriminator that the governor
// uses to tell "the backend is overloaded" apart from an ordinary failure,
// plus two reference classifiers that translate domain-specific failures
// (HTTP status codes, error message keywords) into that discriminator.
//
// Classifiers are collaborators, not part of the governor's core: the
// governor only ever compares an error's kind against the configured
// sentinel via ErrorKind.Is. It never parses HTTP responses or inspects
// strings itself.
package overload

import (
	"errors"
	"regexp"
)

// ErrServiceOverload is the default overload sentinel. Wrap it with %w (or
// use Sentinel) to signal that an operation failed because the backend
// rejected or throttled the request.
var ErrServiceOverload = errors.New("service overload")

// ErrorKind is a discriminator over error values: a single Is check, no
// reflection or string matching. The governor is configured with exactly
// one ErrorKind and uses it to classify every completed task's error.
type ErrorKind interface {
	Is(err error) bool
}

// Sentinel is an ErrorKind that matches any error satisfying errors.Is
// against a single wrapped sentinel value.
type Sentinel struct {
	err error
}

// NewSentinel returns an ErrorKind matching errors.Is(err, sentinel).
func NewSentinel(sentinel error) Sentinel {
	return Sentinel{err: sentinel}
}

// Is reports whether err matches the configured sentinel.
func (s Sentinel) Is(err error) bool {
	return errors.Is(err, s.err)
}

// Default is the ErrorKind matching ErrServiceOverload. It is the governor's
// built-in default when no WithOverloadErrorKind option is supplied.
var Default = NewSentinel(ErrServiceOverload)

// HTTPStatusError is satisfied by transport errors that carry an HTTP
// status code, such as those produced by the netfetch package.
type HTTPStatusError interface {
	error
	StatusCode() int
}

// StatusCodeClassifier re-raises an error as ErrServiceOverload (or Kind, if
// set) when it carries one of the configured HTTP status codes. It leaves
// every other error unchanged.
type StatusCodeClassifier struct {
	// Codes is the set of HTTP status codes considered overload signals.
	// A nil or empty Codes defaults to {503, 429}.
	Codes map[int]struct{}
	// Kind is the overload error raised on a match. Defaults to
	// ErrServiceOverload.
	Kind error
}

// DefaultStatusCodes is the default set of overload status codes: 503
// Service Unavailable and 429 Too Many Requests.
func DefaultStatusCodes() map[int]struct{} {
	return map[int]struct{}{503: {}, 429: {}}
}

// Classify returns the configured overload kind wrapping err if err carries
// one of the classifier's status codes, or err unchanged otherwise.
func (c StatusCodeClassifier) Classify(err error) error {
	if err == nil {
		return nil
	}
	var statusErr HTTPStatusError
	if !errors.As(err, &statusErr) {
		return err
	}
	codes := c.Codes
	if len(codes) == 0 {
		codes = DefaultStatusCodes()
	}
	if _, ok := codes[statusErr.StatusCode()]; !ok {
		return err
	}
	kind := c.Kind
	if kind == nil {
		kind = ErrServiceOverload
	}
	return wrap(kind, err)
}

// KeywordClassifier re-raises an error as the configured overload kind when
// its string representation matches any of Patterns. If Inner is set, only
// errors already matching Inner are considered for keyword matching -
// useful to restrict classification to a specific underlying error kind.
type KeywordClassifier struct {
	// Patterns is the set of regular expressions tested against err.Error().
	// A nil Patterns defaults to DefaultKeywordPatterns().
	Patterns []*regexp.Regexp
	// Inner, if set, restricts classification to errors also matching Inner.
	Inner ErrorKind
	// Kind is the overload error raised on a match. Defaults to
	// ErrServiceOverload.
	Kind error
}

// DefaultKeywordPatterns returns the default, case-insensitive phrases
// recognized as overload signals in error text.
func DefaultKeywordPatterns() []*regexp.Regexp {
	phrases := []string{
		`rate limit`,
		`too many requests`,
		`overload`,
		`retry later`,
	}
	patterns := make([]*regexp.Regexp, 0, len(phrases))
	for _, p := range phrases {
		patterns = append(patterns, regexp.MustCompile(`(?i)`+p))
	}
	return patterns
}

// Classify returns the configured overload kind wrapping err if err's text
// matches any configured pattern (and, when Inner is set, also matches
// Inner), or err unchanged otherwise.
func (c KeywordClassifier) Classify(err error) error {
	if err == nil {
		return nil
	}
	if c.Inner != nil && !c.Inner.Is(err) {
		return err
	}
	patterns := c.Patterns
	if len(patterns) == 0 {
		patterns = DefaultKeywordPatterns()
	}
	msg := err.Error()
	for _, p := range patterns {
		if p.MatchString(msg) {
			kind := c.Kind
			if kind == nil {
				kind = ErrServiceOverload
			}
			return wrap(kind, err)
		}
	}
	return err
}

// wrap builds an error that both errors.Is(result, kind) and carries the
// original error as its chain, so callers and classifiers downstream can
// still unwrap to the original cause.
func wrap(kind, cause error) error {
	return &classified{kind: kind, cause: cause}
}

type classified struct {
	kind  error
	cause error
}

func (c *classified) Error() string { return c.kind.Error() + ": " + c.cause.Error() }
func (c *classified) Unwrap() error { return c.cause }
func (c *classified) Is(target error) bool {
	return errors.Is(c.kind, target)
}
