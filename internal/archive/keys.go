package archive

import "encoding/binary"

var (
	nsPrefix   = []byte("ns/")
	archiveSeg = []byte("/archive/")
	sep        = byte('/')
)

// KeyNamespacePrefix covers every archived layer of a namespace.
func KeyNamespacePrefix(namespace string) []byte {
	k := make([]byte, 0, len(nsPrefix)+len(namespace)+len(archiveSeg))
	k = append(k, nsPrefix...)
	k = append(k, namespace...)
	k = append(k, archiveSeg...)
	return k
}

// KeyLogPrefix covers every archived layer of one log.
func KeyLogPrefix(namespace, name string) []byte {
	k := KeyNamespacePrefix(namespace)
	k = append(k, name...)
	k = append(k, sep)
	return k
}

// KeyLayer builds the key of an archived layer with a big-endian generation
// for ordering.
func KeyLayer(namespace, name string, generation uint64) []byte {
	return binary.BigEndian.AppendUint64(KeyLogPrefix(namespace, name), generation)
}

// splitKey recovers the log name and generation from a key under the
// namespace prefix.
func splitKey(prefix, key []byte) (string, uint64, bool) {
	rest := key[len(prefix):]
	if len(rest) < 9 || rest[len(rest)-9] != sep {
		return "", 0, false
	}
	return string(rest[:len(rest)-9]), binary.BigEndian.Uint64(rest[len(rest)-8:]), true
}
