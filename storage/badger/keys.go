package badger

import (
	"encoding/binary"
	"fmt"
)

// Key prefixes for different data types
const (
	checkpointPrefix     = "chkpt"
	embeddingCachePrefix = "embc"
)

// makeCheckpointKey generates a key for the checkpoint of an index.
func makeCheckpointKey(name string) []byte {
	return []byte(fmt.Sprintf("%s:%s", checkpointPrefix, name))
}

// makeEmbeddingKey generates a key for a cached vector.
// Format: prefix:contentKey (8 bytes, big endian)
func makeEmbeddingKey(contentKey uint64) []byte {
	prefix := []byte(embeddingCachePrefix + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], contentKey)
	return buf
}
