package pebbleback

import (
	"context"
	"fmt"
	"testing"

	"github.com/rzbill/scribe/internal/backend"
	pebblestore "github.com/rzbill/scribe/internal/storage/pebble"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return Open(db)
}

func seedStream(t *testing.T, s *Store, streamID string, n int) {
	t.Helper()
	recs := make([]backend.Record, n)
	for i := range recs {
		recs[i] = backend.Record{
			StreamID: streamID,
			Seq:      uint64(i + 1),
			Sender:   "writer-1",
			Payload:  []byte(fmt.Sprintf(`{"n":%d}`, i+1)),
		}
	}
	if err := s.WriteBatch(context.Background(), recs); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func replaySeqs(t *testing.T, s *Store, streamID string, from, to uint64) ([]uint64, uint64) {
	t.Helper()
	var seqs []uint64
	maxSeq, err := s.ReplayStream(context.Background(), streamID, from, to, func(rec backend.Record) {
		seqs = append(seqs, rec.Seq)
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	return seqs, maxSeq
}

func TestWriteOneReplayRoundtrip(t *testing.T) {
	s := newTestStore(t)
	rec := backend.Record{StreamID: "s", Seq: 1, Sender: "w", Payload: []byte("hello")}
	if err := s.WriteOne(context.Background(), rec); err != nil {
		t.Fatalf("write: %v", err)
	}
	var got []backend.Record
	maxSeq, err := s.ReplayStream(context.Background(), "s", 1, 10, func(r backend.Record) { got = append(got, r) })
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if maxSeq != 1 || len(got) != 1 {
		t.Fatalf("maxSeq=%d n=%d", maxSeq, len(got))
	}
	if got[0].Sender != "w" || string(got[0].Payload) != "hello" {
		t.Fatalf("roundtrip mismatch: %+v", got[0])
	}
}

func TestReplayBoundsAreClosed(t *testing.T) {
	s := newTestStore(t)
	seedStream(t, s, "s", 5)
	seqs, maxSeq := replaySeqs(t, s, "s", 2, 4)
	if len(seqs) != 3 || seqs[0] != 2 || seqs[2] != 4 {
		t.Fatalf("seqs=%v", seqs)
	}
	if maxSeq != 4 {
		t.Fatalf("maxSeq=%d", maxSeq)
	}
}

func TestNonPermanentDeleteSkipsButCounts(t *testing.T) {
	s := newTestStore(t)
	seedStream(t, s, "s", 10)
	if err := s.DeleteRange(context.Background(), "s", 3, 5, false); err != nil {
		t.Fatalf("delete: %v", err)
	}
	seqs, maxSeq := replaySeqs(t, s, "s", 1, 10)
	want := []uint64{1, 2, 6, 7, 8, 9, 10}
	if len(seqs) != len(want) {
		t.Fatalf("seqs=%v", seqs)
	}
	for i := range want {
		if seqs[i] != want[i] {
			t.Fatalf("seqs=%v", seqs)
		}
	}
	// deleted records still count toward the max sequence observed
	if maxSeq != 10 {
		t.Fatalf("maxSeq=%d", maxSeq)
	}
	// replaying only the deleted range still reports its max
	seqs, maxSeq = replaySeqs(t, s, "s", 3, 5)
	if len(seqs) != 0 || maxSeq != 5 {
		t.Fatalf("deleted range: seqs=%v maxSeq=%d", seqs, maxSeq)
	}
}

func TestPermanentDeleteRemoves(t *testing.T) {
	s := newTestStore(t)
	seedStream(t, s, "s", 10)
	if err := s.DeleteRange(context.Background(), "s", 3, 5, true); err != nil {
		t.Fatalf("delete: %v", err)
	}
	seqs, maxSeq := replaySeqs(t, s, "s", 3, 5)
	if len(seqs) != 0 || maxSeq != 0 {
		t.Fatalf("permanently deleted range should be empty: seqs=%v maxSeq=%d", seqs, maxSeq)
	}
	seqs, _ = replaySeqs(t, s, "s", 1, 10)
	if len(seqs) != 7 {
		t.Fatalf("seqs=%v", seqs)
	}
}

func TestDeleteRangeIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	seedStream(t, s, "s", 4)
	for i := 0; i < 2; i++ {
		if err := s.DeleteRange(context.Background(), "s", 1, 2, false); err != nil {
			t.Fatalf("delete pass %d: %v", i, err)
		}
	}
	seqs, _ := replaySeqs(t, s, "s", 1, 4)
	if len(seqs) != 2 || seqs[0] != 3 {
		t.Fatalf("seqs=%v", seqs)
	}
}

func TestConfirmMark(t *testing.T) {
	s := newTestStore(t)
	if err := s.Confirm(context.Background(), "s", 7, "chan-1"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	ok, err := s.Confirmed("s", 7, "chan-1")
	if err != nil || !ok {
		t.Fatalf("expected mark: ok=%v err=%v", ok, err)
	}
	ok, err = s.Confirmed("s", 8, "chan-1")
	if err != nil || ok {
		t.Fatalf("unexpected mark: ok=%v err=%v", ok, err)
	}
}

func TestStreamsAreIsolated(t *testing.T) {
	s := newTestStore(t)
	seedStream(t, s, "a", 3)
	seedStream(t, s, "b", 2)
	seqs, _ := replaySeqs(t, s, "a", 1, 100)
	if len(seqs) != 3 {
		t.Fatalf("stream a leaked: %v", seqs)
	}
	seqs, _ = replaySeqs(t, s, "b", 1, 100)
	if len(seqs) != 2 {
		t.Fatalf("stream b leaked: %v", seqs)
	}
}

func TestScanWithCELFilter(t *testing.T) {
	s := newTestStore(t)
	seedStream(t, s, "s", 10)
	recs, err := s.Scan(context.Background(), "s", 1, 10, ScanOptions{Filter: "sequence >= 4 && json.n <= 6.0"})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(recs) != 3 || recs[0].Seq != 4 || recs[2].Seq != 6 {
		t.Fatalf("recs=%v", recs)
	}
}

func TestScanBadFilter(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Scan(context.Background(), "s", 1, 10, ScanOptions{Filter: "sequence >>> 2"}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestScanLimitAndDeleted(t *testing.T) {
	s := newTestStore(t)
	seedStream(t, s, "s", 6)
	if err := s.DeleteRange(context.Background(), "s", 1, 2, false); err != nil {
		t.Fatalf("delete: %v", err)
	}
	recs, err := s.Scan(context.Background(), "s", 1, 6, ScanOptions{Limit: 2})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(recs) != 2 || recs[0].Seq != 3 {
		t.Fatalf("recs=%+v", recs)
	}
	recs, err = s.Scan(context.Background(), "s", 1, 6, ScanOptions{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(recs) != 6 || !recs[0].Deleted {
		t.Fatalf("recs=%+v", recs)
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	seedStream(t, s, "s", 5)
	if err := s.DeleteRange(context.Background(), "s", 2, 3, false); err != nil {
		t.Fatalf("delete: %v", err)
	}
	st, err := s.Stats(context.Background(), "s")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.FirstSeq != 1 || st.LastSeq != 5 || st.Count != 5 || st.Deleted != 2 {
		t.Fatalf("stats=%+v", st)
	}
	if st.Bytes == 0 {
		t.Fatalf("bytes not counted")
	}
}

func TestValueCodecRejectsCorruption(t *testing.T) {
	val := encodeValue("w", false, []byte("payload"))
	if _, ok := decodeValue(val); !ok {
		t.Fatalf("valid value rejected")
	}
	val[len(val)-1] ^= 0xff
	if _, ok := decodeValue(val); ok {
		t.Fatalf("corrupt value accepted")
	}
	if _, ok := decodeValue([]byte{0x01}); ok {
		t.Fatalf("short value accepted")
	}
}
