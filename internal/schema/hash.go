package schema

import (
	"fmt"

	"github.com/minio/highwayhash"
)

var hashKey = []byte("0123456789ABCDEF0123456789ABCDEF")

// ContentHash returns a stable hex digest of raw. It is used as the schema
// hash when the platform does not supply one.
func ContentHash(raw []byte) string {
	hash, err := highwayhash.New64(hashKey)
	if err != nil {
		// hashKey is a constant 32 bytes; New64 only fails on key length.
		panic(err)
	}
	hash.Write(raw)
	return fmt.Sprintf("%016x", hash.Sum64())
}
