package fetcher

import (
	"errors"
	"strings"
)

// Sentinel errors for the taxonomy in §7. Recoverable conditions never
// escape Fetch(); only fatal errors (a Request error wrapped with
// Irrecoverable, a Store error the engine cannot treat as a rewindable
// reorg) or a context cancellation are ever returned to the caller.
var (
	// ErrNoPeers means the pool has no members at all; per §1 non-goals the
	// engine makes no progress guarantee in that case. The engine itself
	// never returns or reports it: with no idle peer it simply waits.
	ErrNoPeers = errors.New("fetcher: no peers in pool")

	// ErrCanceled is the fallback Fetch uses for a canceled context whose
	// Err() is nil; a canceled context normally makes Fetch return ctx.Err()
	// itself. It mirrors the teacher's errCanceled on d.cancelCh.
	ErrCanceled = errors.New("fetcher: canceled")

	// ErrEmptyReply classifies a request that resolved with no reply or a
	// zero-length result (§7 EmptyOrMissingReply). Recoverable.
	ErrEmptyReply = errors.New("fetcher: empty or missing reply")

	// ErrMalformedReply classifies a request whose Process hook rejected
	// the payload outright (§7 MalformedReply). Recoverable.
	ErrMalformedReply = errors.New("fetcher: malformed reply")

	// ErrTimeout classifies a request that never resolved within the
	// configured timeout (§7 Timeout). Recoverable for the job, but the
	// assigned peer is banned.
	ErrTimeout = errors.New("fetcher: request timed out")
)

// Irrecoverable wraps an error the Request hook returned that the Failure
// Controller should treat as fatal: ban the peer, stop the engine, discard
// undispatched work, and rethrow from Fetch(). A Request error not wrapped
// with Irrecoverable is treated as recoverable (re-enqueue with backoff).
// Store errors do not need the wrapper: every Store error other than a
// rewindable reorg hint is already fatal.
func Irrecoverable(err error) error {
	if err == nil {
		return nil
	}
	return &irrecoverableError{err}
}

type irrecoverableError struct{ err error }

func (e *irrecoverableError) Error() string { return e.err.Error() }
func (e *irrecoverableError) Unwrap() error  { return e.err }

// IsIrrecoverable reports whether err (or one it wraps) was marked fatal by
// Irrecoverable.
func IsIrrecoverable(err error) bool {
	var ie *irrecoverableError
	return errors.As(err, &ie)
}

// ParentHeaderMissingError is the typed reorg signal a Chain collaborator
// should return from Store when a block-range task's parent is unknown
// locally. §9 prefers this typed variant over string sniffing; IsReorgHint
// falls back to substring matching only for collaborators that can't be
// changed to return it.
type ParentHeaderMissingError struct {
	// Cause, if set, is the underlying error the collaborator received
	// (e.g. from a database lookup), kept for logging.
	Cause error
}

func (e *ParentHeaderMissingError) Error() string {
	if e.Cause != nil {
		return "parent header not found: " + e.Cause.Error()
	}
	return "parent header not found"
}

func (e *ParentHeaderMissingError) Unwrap() error { return e.Cause }

// reorgHintSubstring is the legacy-compatible fallback match used only when
// a Chain collaborator cannot be updated to return ParentHeaderMissingError.
const reorgHintSubstring = "could not find parent"

// IsReorgHint reports whether err signals a reorg, either via the typed
// ParentHeaderMissingError or, failing that, a substring match against the
// error text.
func IsReorgHint(err error) bool {
	if err == nil {
		return false
	}
	var pe *ParentHeaderMissingError
	if errors.As(err, &pe) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), reorgHintSubstring)
}
