package archive

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"
)

// Export copies every archived layer of namespace into the bbolt file at path,
// creating it if needed. Layers already present in the file are overwritten.
// Returns the number of layers written.
func (s *Store[T]) Export(ctx context.Context, namespace, path string) (int, error) {
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return 0, err
	}
	defer bdb.Close()

	written := 0
	err = bdb.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return err
		}
		return s.Walk(namespace, func(l Layer[T]) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			bucket, err := root.CreateBucketIfNotExists([]byte(l.Name))
			if err != nil {
				return err
			}
			value, err := msgpack.Marshal(&l.LayerState)
			if err != nil {
				return err
			}
			if err := bucket.Put(binary.BigEndian.AppendUint64(nil, l.Generation), value); err != nil {
				return err
			}
			written++
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}
