package pebbleback

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/rzbill/scribe/internal/backend"
	pebblestore "github.com/rzbill/scribe/internal/storage/pebble"
)

// Store implements backend.Store and backend.Replayer on a Pebble database.
type Store struct {
	db *pebblestore.DB
}

// Open returns a Store over the provided database.
func Open(db *pebblestore.DB) *Store {
	return &Store{db: db}
}

// WriteOne implements backend.Store.
func (s *Store) WriteOne(_ context.Context, rec backend.Record) error {
	return s.db.Set(keyEntry(rec.StreamID, rec.Seq), encodeValue(rec.Sender, rec.Deleted, rec.Payload))
}

// WriteBatch implements backend.Store. All records commit as one Pebble
// batch: either all persist or none do.
func (s *Store) WriteBatch(_ context.Context, recs []backend.Record) error {
	if len(recs) == 0 {
		return nil
	}
	b := s.db.NewBatch()
	defer b.Close()
	for _, rec := range recs {
		val := encodeValue(rec.Sender, rec.Deleted, rec.Payload)
		if err := b.Set(keyEntry(rec.StreamID, rec.Seq), val, nil); err != nil {
			return err
		}
	}
	return s.db.CommitBatch(b)
}

// DeleteRange implements backend.Store. Permanent deletes remove keys;
// non-permanent deletes rewrite values with the deleted flag set so the
// records stay visible to replay's sequence accounting.
func (s *Store) DeleteRange(ctx context.Context, streamID string, fromSeq, toSeq uint64, permanent bool) error {
	iter, err := s.entryIter(streamID, fromSeq, toSeq)
	if err != nil {
		return err
	}
	defer iter.Close()

	b := s.db.NewBatch()
	defer b.Close()
	n := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if permanent {
			if err := b.Delete(iter.Key(), nil); err != nil {
				return err
			}
			n++
			continue
		}
		dec, okDec := decodeValue(iter.Value())
		if !okDec {
			return fmt.Errorf("pebbleback: corrupt record at seq %d of %s", entrySeq(iter.Key()), streamID)
		}
		if dec.Deleted {
			continue
		}
		val := encodeValue(dec.Sender, true, dec.Payload)
		if err := b.Set(append([]byte(nil), iter.Key()...), val, nil); err != nil {
			return err
		}
		n++
	}
	if n == 0 {
		return nil
	}
	return s.db.CommitBatch(b)
}

// Confirm implements backend.Store. The mark value is the confirmation
// time in milliseconds.
func (s *Store) Confirm(_ context.Context, streamID string, seqNr uint64, channelID string) error {
	var val [8]byte
	binary.BigEndian.PutUint64(val[:], uint64(time.Now().UnixMilli()))
	return s.db.Set(keyConfirm(streamID, channelID, seqNr), val[:])
}

// ReplayStream implements backend.Replayer. onEach sees non-deleted records
// ascending; the returned max sequence counts deleted records too.
func (s *Store) ReplayStream(ctx context.Context, streamID string, fromSeq, toSeq uint64, onEach func(backend.Record)) (uint64, error) {
	iter, err := s.entryIter(streamID, fromSeq, toSeq)
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	var maxSeq uint64
	for ok := iter.First(); ok; ok = iter.Next() {
		if err := ctx.Err(); err != nil {
			return maxSeq, err
		}
		seq := entrySeq(iter.Key())
		dec, okDec := decodeValue(iter.Value())
		if !okDec {
			return maxSeq, fmt.Errorf("pebbleback: corrupt record at seq %d of %s", seq, streamID)
		}
		maxSeq = seq
		if dec.Deleted {
			continue
		}
		onEach(backend.Record{
			StreamID: streamID,
			Seq:      seq,
			Sender:   dec.Sender,
			Payload:  dec.Payload,
		})
	}
	return maxSeq, nil
}

// Confirmed reports whether channelID has a confirmation mark at seqNr.
func (s *Store) Confirmed(streamID string, seqNr uint64, channelID string) (bool, error) {
	_, err := s.db.Get(keyConfirm(streamID, channelID, seqNr))
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// entryIter returns an iterator bounded to the entries of streamID in the
// closed interval [fromSeq, toSeq].
func (s *Store) entryIter(streamID string, fromSeq, toSeq uint64) (*pebble.Iterator, error) {
	low := keyEntry(streamID, fromSeq)
	hi := keyEntry(streamID, toSeq)
	return s.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: append(hi, 0x00)})
}
