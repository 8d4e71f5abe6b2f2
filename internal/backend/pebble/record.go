package pebbleback

import (
	"encoding/binary"
	"hash/crc32"
)

// Value encoding: flags(1B) | varint senderLen | sender | payload |
// crc32c(flags|sender|payload)

const flagDeleted = byte(1 << 0)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func encodeValue(sender string, deleted bool, payload []byte) []byte {
	out := make([]byte, 0, 1+10+len(sender)+len(payload)+4)
	var flags byte
	if deleted {
		flags |= flagDeleted
	}
	out = append(out, flags)
	var tmp [10]byte
	n := binary.PutUvarint(tmp[:], uint64(len(sender)))
	out = append(out, tmp[:n]...)
	out = append(out, sender...)
	out = append(out, payload...)

	crc := crc32.Update(0, castagnoli, out[:len(out)])
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc)
	out = append(out, crcb[:]...)
	return out
}

type decodedValue struct {
	Sender  string
	Deleted bool
	Payload []byte
}

func decodeValue(b []byte) (decodedValue, bool) {
	if len(b) < 1+1+4 {
		return decodedValue{}, false
	}
	body := b[:len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	if crc32.Update(0, castagnoli, body) != expect {
		return decodedValue{}, false
	}
	flags := body[0]
	slen, n := binary.Uvarint(body[1:])
	if n <= 0 || 1+n+int(slen) > len(body) {
		return decodedValue{}, false
	}
	sender := string(body[1+n : 1+n+int(slen)])
	payload := append([]byte(nil), body[1+n+int(slen):]...)
	return decodedValue{Sender: sender, Deleted: flags&flagDeleted != 0, Payload: payload}, true
}
