// Package fault provides the typed failure taxonomy shared by the signal,
// decoding and alignment packages.
//
// Errors carry a Kind and optionally the operation and read that produced
// them. Sentinels compare by Kind, so callers match with errors.Is:
//
//	if errors.Is(err, fault.ErrInvalidBanding) {
//		// reject the request without retrying
//	}
//
// Wrap attaches a read identifier at the read boundary of a batch so that
// a failing read can be reported and skipped.
package fault
