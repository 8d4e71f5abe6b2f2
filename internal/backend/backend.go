// Package backend defines the storage plugin contract the journal front end
// depends on. Implementations are free to complete operations in any order;
// the journal restores per-destination ordering itself.
package backend

import "context"

// Record is the persisted unit handed to a Store. Sender carries the
// resolved identity of the writer; transient identities are stripped by the
// journal before a record reaches the backend.
type Record struct {
	StreamID string
	Seq      uint64
	Deleted  bool
	Sender   string
	Payload  []byte
}

// Store is the four-operation write-side contract.
//
// The methods are synchronous; the journal invokes them on worker
// goroutines and funnels the results back through its completion channel.
type Store interface {
	// WriteOne persists a single record.
	WriteOne(ctx context.Context, rec Record) error

	// WriteBatch persists the records as one atomic unit: either all
	// records persist or none do.
	WriteBatch(ctx context.Context, recs []Record) error

	// DeleteRange removes records of streamID with fromSeq <= seq <= toSeq.
	// When permanent is false the records are marked deleted but remain
	// visible to replay's sequence accounting.
	DeleteRange(ctx context.Context, streamID string, fromSeq, toSeq uint64, permanent bool) error

	// Confirm records that channelID has processed seqNr of streamID.
	Confirm(ctx context.Context, streamID string, seqNr uint64, channelID string) error
}

// Replayer is the streaming read-side contract.
type Replayer interface {
	// ReplayStream invokes onEach once per non-deleted record of streamID
	// in the closed interval [fromSeq, toSeq], in ascending sequence order,
	// and returns the highest sequence number observed in the interval
	// (counting records marked deleted).
	ReplayStream(ctx context.Context, streamID string, fromSeq, toSeq uint64, onEach func(Record)) (uint64, error)
}
