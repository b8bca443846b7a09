package txn

import (
	"encoding/binary"
	"errors"
	"hash/crc32"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/rzbill/auditstack/internal/appendstack"
)

// ErrCorrupt is returned when a stored record fails its checksum or decodes
// into an invalid snapshot.
var ErrCorrupt = errors.New("txn: corrupt state record")

// Record framing: version_be8 | payload | crc32c(version|payload)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func encodeFrame(version uint64, payload []byte) []byte {
	out := make([]byte, 8, 8+len(payload)+4)
	binary.BigEndian.PutUint64(out, version)
	out = append(out, payload...)
	crc := crc32.Checksum(out, castagnoli)
	return binary.BigEndian.AppendUint32(out, crc)
}

func decodeFrame(b []byte) (uint64, []byte, error) {
	if len(b) < 8+4 {
		return 0, nil, ErrCorrupt
	}
	body := b[:len(b)-4]
	if crc32.Checksum(body, castagnoli) != binary.BigEndian.Uint32(b[len(b)-4:]) {
		return 0, nil, ErrCorrupt
	}
	return binary.BigEndian.Uint64(body[:8]), body[8:], nil
}

func encodeState[T any](version uint64, snap appendstack.Snapshot[T]) ([]byte, error) {
	payload, err := msgpack.Marshal(&snap)
	if err != nil {
		return nil, err
	}
	return encodeFrame(version, payload), nil
}

func decodeState[T any](b []byte) (uint64, appendstack.Snapshot[T], error) {
	version, payload, err := decodeFrame(b)
	if err != nil {
		return 0, appendstack.Snapshot[T]{}, err
	}
	var snap appendstack.Snapshot[T]
	if err := msgpack.Unmarshal(payload, &snap); err != nil {
		return 0, appendstack.Snapshot[T]{}, errors.Join(ErrCorrupt, err)
	}
	if err := snap.Validate(); err != nil {
		return 0, appendstack.Snapshot[T]{}, errors.Join(ErrCorrupt, err)
	}
	return version, snap, nil
}
