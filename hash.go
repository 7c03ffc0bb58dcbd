package main

import "hash/fnv"

// Fast non cryptographic hash, used for ETags.
func getFNVHash(blob []byte) uint64 {
	h := fnv.New64a()
	h.Write(blob)
	return h.Sum64()
}
