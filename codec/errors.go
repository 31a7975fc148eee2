package codec

// The error kinds below classify every failure a codec can produce. They are
// typed so callers can branch with errors.As without parsing messages.

// FormatMismatchError reports that a stream does not belong to the codec that
// inspected it. Detection treats it as "try the next codec", not a failure.
type FormatMismatchError string

func (e FormatMismatchError) Error() string { return "format mismatch: " + string(e) }

// MalformedError reports structure inconsistent with the stream: impossible
// offsets, truncated payloads, contradictory header fields.
type MalformedError string

func (e MalformedError) Error() string { return "malformed structure: " + string(e) }

// UnsupportedError reports a recognized format whose variant the codec cannot
// process, and for which no fallback path exists.
type UnsupportedError string

func (e UnsupportedError) Error() string { return "unsupported variant: " + string(e) }

// AllocationError reports a buffer whose size guards rejected it before
// allocation.
type AllocationError string

func (e AllocationError) Error() string { return "allocation rejected: " + string(e) }

// LibraryError wraps a failure from an underlying library. It is always
// escalated to the caller, never swallowed.
type LibraryError struct {
	Op  string
	Err error
}

func (e *LibraryError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *LibraryError) Unwrap() error { return e.Err }
