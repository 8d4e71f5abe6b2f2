package pebbleback

import "encoding/binary"

// Keyspace helpers. Layout (byte-wise, lexicographically sortable):
// - js/{stream}/e/{seq_be8}
// - js/{stream}/c/{channel}/{seq_be8}

var (
	sep        = byte('/')
	journalSeg = []byte("js/")
	entrySeg   = []byte("/e/")
	confirmSeg = []byte("/c/")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// keyEntry builds the record key with a big-endian sequence for ordering.
func keyEntry(streamID string, seq uint64) []byte {
	k := make([]byte, 0, len(journalSeg)+len(streamID)+len(entrySeg)+8)
	k = append(k, journalSeg...)
	k = append(k, streamID...)
	k = append(k, entrySeg...)
	k = appendBE8(k, seq)
	return k
}

// keyConfirm builds the confirmation-mark key for a channel and sequence.
func keyConfirm(streamID, channelID string, seq uint64) []byte {
	k := make([]byte, 0, len(journalSeg)+len(streamID)+len(confirmSeg)+len(channelID)+9)
	k = append(k, journalSeg...)
	k = append(k, streamID...)
	k = append(k, confirmSeg...)
	k = append(k, channelID...)
	k = append(k, sep)
	k = appendBE8(k, seq)
	return k
}

// entrySeq extracts the sequence number from an entry key.
func entrySeq(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(key)-8:])
}
