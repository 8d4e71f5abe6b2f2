package pebbleback

import (
	"context"
	"fmt"

	"github.com/rzbill/scribe/internal/backend"
)

// ScanOptions controls the inspection scan used by ops tooling. This is a
// read path next to the plugin contract, not part of it.
type ScanOptions struct {
	// Filter is an optional CEL expression evaluated per record. Empty
	// matches everything.
	Filter string
	// Limit caps the number of returned records. 0 means no limit.
	Limit int
	// IncludeDeleted also returns records marked deleted.
	IncludeDeleted bool
}

// Scan returns the records of streamID in [fromSeq, toSeq] matching opts.
func (s *Store) Scan(ctx context.Context, streamID string, fromSeq, toSeq uint64, opts ScanOptions) ([]backend.Record, error) {
	filter, err := newCELFilter(opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("pebbleback: bad filter: %w", err)
	}
	iter, err := s.entryIter(streamID, fromSeq, toSeq)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []backend.Record
	for ok := iter.First(); ok; ok = iter.Next() {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		seq := entrySeq(iter.Key())
		dec, okDec := decodeValue(iter.Value())
		if !okDec {
			return out, fmt.Errorf("pebbleback: corrupt record at seq %d of %s", seq, streamID)
		}
		if dec.Deleted && !opts.IncludeDeleted {
			continue
		}
		if !filter.Eval(streamID, seq, dec.Sender, dec.Deleted, dec.Payload) {
			continue
		}
		out = append(out, backend.Record{
			StreamID: streamID,
			Seq:      seq,
			Deleted:  dec.Deleted,
			Sender:   dec.Sender,
			Payload:  dec.Payload,
		})
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

// StreamStats summarizes the stored records of one stream.
type StreamStats struct {
	FirstSeq uint64
	LastSeq  uint64
	Count    uint64
	Deleted  uint64
	Bytes    uint64
}

// Stats scans streamID and returns its summary.
func (s *Store) Stats(ctx context.Context, streamID string) (StreamStats, error) {
	iter, err := s.entryIter(streamID, 0, ^uint64(0))
	if err != nil {
		return StreamStats{}, err
	}
	defer iter.Close()

	var st StreamStats
	for ok := iter.First(); ok; ok = iter.Next() {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		seq := entrySeq(iter.Key())
		if st.Count == 0 {
			st.FirstSeq = seq
		}
		st.LastSeq = seq
		st.Count++
		st.Bytes += uint64(len(iter.Value()))
		if dec, okDec := decodeValue(iter.Value()); okDec && dec.Deleted {
			st.Deleted++
		}
	}
	return st, nil
}
