package headerfetch

import "github.com/ethfetch/headerpipe/fetcher"

// Events extends the generic fetcher.Events with the header specialization's
// own notification (§4.4: SYNC_FETCHED_HEADERS fires once a contiguous
// prefix has actually been accepted by the Chain collaborator).
type Events interface {
	fetcher.Events

	// FetchedHeaders fires after Store succeeds, with exactly the prefix
	// PutHeaders reported as newly accepted.
	FetchedHeaders(headers []Header)
}

// NoopEvents discards every event.
type NoopEvents struct{}

func (NoopEvents) FetcherError(error, fetcher.Peer) {}
func (NoopEvents) FetchedHeaders([]Header)          {}
