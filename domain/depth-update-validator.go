package domain

import "errors"

var (
	// ErrUpdateOutOfSequence means a gap: deltas were lost and the book
	// must be re-seeded before it can be trusted again.
	ErrUpdateOutOfSequence = errors.New("depth update is out of sequence")
	// ErrUpdateOutdated means the delta predates the seed snapshot and is
	// safely skipped.
	ErrUpdateOutdated = errors.New("depth update is outdated")
)

// DepthUpdateValidator gates venue-sequenced deltas against the last
// applied venue sequence. Venues without native sequencing use nil.
type DepthUpdateValidator interface {
	// Validate returns nil when the delta may be applied.
	Validate(firstUpdateID, finalUpdateID, lastApplied int64) error
}
