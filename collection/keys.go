// Package collection implements the collection engine: coordinating
// primary storage, secondary indexes, and links on put/delete, id
// generation, and JSON import/export.
package collection

import "encoding/binary"

// PrimaryKey builds the collection||id key every record is stored under in
// the shared primary table. id is big-endian with its sign bit flipped so
// that signed numeric order equals unsigned byte order.
func PrimaryKey(collectionID uint16, id int64) []byte {
	buf := make([]byte, 10)
	binary.BigEndian.PutUint16(buf, collectionID)
	putFlippedInt64(buf[2:], id)
	return buf
}

// PrimaryKeyPrefix is the byte range prefix covering every record of one
// collection, used by Clear and by a full-range where-clause.
func PrimaryKeyPrefix(collectionID uint16) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, collectionID)
	return buf
}

// DecodeID recovers the id encoded by PrimaryKey (or any key sharing its
// trailing 8-byte flipped-int64 suffix).
func DecodeID(key []byte) int64 {
	return getFlippedInt64(key[len(key)-8:])
}

func putFlippedInt64(buf []byte, id int64) {
	binary.BigEndian.PutUint64(buf, uint64(id)^0x8000000000000000)
}

func getFlippedInt64(buf []byte) int64 {
	return int64(binary.BigEndian.Uint64(buf) ^ 0x8000000000000000)
}

// IndexKey prefixes a composite index key with the index's 16-bit id, so
// every index shares the one secondary table without colliding.
func IndexKey(indexID uint16, composite []byte) []byte {
	buf := make([]byte, 2+len(composite))
	binary.BigEndian.PutUint16(buf, indexID)
	copy(buf[2:], composite)
	return buf
}

// IndexKeyPrefix is the byte range covering every entry of one index.
func IndexKeyPrefix(indexID uint16) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, indexID)
	return buf
}

const (
	linkForward  byte = 0x00
	linkBackward byte = 0x01
)

// linkKey builds one physical link-table entry: linkID || direction ||
// ownerID || otherID. Both the forward (owner=source) and backward
// (owner=target) entries use this shape so Link.Iter can scan a single
// prefix (linkID||direction||ownerID) to enumerate the other side.
func linkKey(linkID uint16, direction byte, ownerID, otherID int64) []byte {
	buf := make([]byte, 2+1+8+8)
	binary.BigEndian.PutUint16(buf, linkID)
	buf[2] = direction
	putFlippedInt64(buf[3:], ownerID)
	putFlippedInt64(buf[11:], otherID)
	return buf
}

// linkOwnerPrefix is the byte range covering every edge where ownerID
// plays the given direction's role (source for forward, target for
// backward).
func linkOwnerPrefix(linkID uint16, direction byte, ownerID int64) []byte {
	buf := make([]byte, 2+1+8)
	binary.BigEndian.PutUint16(buf, linkID)
	buf[2] = direction
	putFlippedInt64(buf[3:], ownerID)
	return buf
}

func linkKeyOtherID(key []byte) int64 {
	return getFlippedInt64(key[len(key)-8:])
}
