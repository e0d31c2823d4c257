package fetcher

// Events is the generic event sink every engine instance is constructed
// with (§9: "define an event sink interface passed in at construction;
// avoid process-wide singletons"). The header specialization (C8) extends
// this with its own SYNC_FETCHED_HEADERS notification.
type Events interface {
	// FetcherError fires whenever running is true and an error (recoverable
	// or not) occurred during dispatch, assembly or storage — the generic
	// SYNC_FETCHER_ERROR signal from §4.7.
	FetcherError(err error, peer Peer)
}

// NoopEvents discards every event; the zero value of Events for callers
// that don't care (tests, simple demos).
type NoopEvents struct{}

func (NoopEvents) FetcherError(error, Peer) {}
