package txn

var (
	nsPrefix    = []byte("ns/")
	stackSeg    = []byte("/stack/")
	stateSuffix = []byte("/s")
)

// StateKey builds the key holding a stack's current snapshot.
func StateKey(namespace, name string) []byte {
	k := make([]byte, 0, len(nsPrefix)+len(namespace)+len(stackSeg)+len(name)+len(stateSuffix))
	k = append(k, nsPrefix...)
	k = append(k, namespace...)
	k = append(k, stackSeg...)
	k = append(k, name...)
	k = append(k, stateSuffix...)
	return k
}
