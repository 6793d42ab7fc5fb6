package timeline

import "errors"

// Error kinds surfaced across the worker and orchestrator boundaries.
var (
	ErrItemExtraction  = errors.New("item extraction failed")
	ErrContentNotFound = errors.New("timeline content not found")
	ErrNavigation      = errors.New("navigation failed")
	ErrWorkerTimeout   = errors.New("worker timed out")
	ErrEnvelopeParse   = errors.New("worker envelope could not be parsed")
	ErrWorkerExit      = errors.New("worker exited without output")
	ErrWorkerFailed    = errors.New("worker reported failure")
	ErrValidation      = errors.New("invalid request")
	ErrQueueFull       = errors.New("scrape queue is full")
)

// Kind names used in the errorKind envelope field.
const (
	KindItemExtraction  = "item_extraction"
	KindContentNotFound = "content_not_found"
	KindNavigation      = "navigation"
	KindWorkerTimeout   = "worker_timeout"
	KindEnvelopeParse   = "envelope_parse"
	KindWorkerExit      = "worker_exit"
	KindWorkerFailed    = "worker_failed"
	KindValidation      = "validation"
	KindQueueFull       = "queue_full"
	KindInternal        = "internal"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrItemExtraction, KindItemExtraction},
	{ErrContentNotFound, KindContentNotFound},
	{ErrNavigation, KindNavigation},
	{ErrWorkerTimeout, KindWorkerTimeout},
	{ErrEnvelopeParse, KindEnvelopeParse},
	{ErrWorkerExit, KindWorkerExit},
	{ErrWorkerFailed, KindWorkerFailed},
	{ErrValidation, KindValidation},
	{ErrQueueFull, KindQueueFull},
}

// KindOf maps err to its kind name. Errors outside the known set map to
// KindInternal; nil maps to "".
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// ErrorForKind returns the sentinel error for a kind name, or nil when the
// name is unknown.
func ErrorForKind(kind string) error {
	for _, k := range kinds {
		if k.kind == kind {
			return k.err
		}
	}
	return nil
}
