package headerfetch

// Chain is the persistent header store Store writes through to — an
// external collaborator per §1 (this package never defines how headers are
// encoded on disk or what index structure backs lookups). PutHeaders must
// return ParentHeaderMissingError-compatible errors (see fetcher.IsReorgHint)
// when the supplied prefix doesn't chain onto what's already stored.
type Chain interface {
	// PutHeaders appends headers, already known to be contiguous with each
	// other, onto the chain. accepted is how many of headers were newly
	// written (duplicates already present are silently skipped and do not
	// count); err non-nil means none were written.
	PutHeaders(headers []Header) (accepted int, err error)
}
