package store

import (
	"encoding/binary"
)

// Key prefixes. Every key is prefix + collection + 0x00 + rest.
const (
	prefixDoc      byte = 'd' // d|coll|0|id            -> msgpack document
	prefixNatural  byte = 'n' // n|coll|0|natural key   -> id
	prefixSlug     byte = 's' // s|coll|0|slug          -> id
	prefixParent   byte = 'p' // p|coll|0|parent|0|id   -> nil
	prefixModified byte = 'm' // m|coll|0|nanos(8)|id   -> nil
	prefixSeq      byte = 'q' // q|coll                 -> uint64 counter
)

func collectionPrefix(prefix byte, coll string) []byte {
	key := make([]byte, 0, 2+len(coll))
	key = append(key, prefix)
	key = append(key, coll...)
	key = append(key, 0x00)
	return key
}

func docKey(coll, id string) []byte {
	return append(collectionPrefix(prefixDoc, coll), id...)
}

func naturalKey(coll, natural string) []byte {
	return append(collectionPrefix(prefixNatural, coll), natural...)
}

func slugKey(coll, slug string) []byte {
	return append(collectionPrefix(prefixSlug, coll), slug...)
}

func parentPrefix(coll, parent string) []byte {
	key := append(collectionPrefix(prefixParent, coll), parent...)
	return append(key, 0x00)
}

func parentKey(coll, parent, id string) []byte {
	return append(parentPrefix(coll, parent), id...)
}

// modifiedKey sorts by modification time, big endian so byte order matches time order.
func modifiedKey(coll string, nanos int64, id string) []byte {
	key := collectionPrefix(prefixModified, coll)
	key = binary.BigEndian.AppendUint64(key, uint64(nanos))
	return append(key, id...)
}

// decodeModifiedKey returns the nanos and id encoded after the collection prefix.
func decodeModifiedKey(prefixLen int, key []byte) (int64, string) {
	rest := key[prefixLen:]
	if len(rest) < 8 {
		return 0, ""
	}
	return int64(binary.BigEndian.Uint64(rest[:8])), string(rest[8:])
}

func seqKey(coll string) []byte {
	key := make([]byte, 0, 1+len(coll))
	key = append(key, prefixSeq)
	return append(key, coll...)
}
