// Package idgen generates short request IDs for the HTTP API.
package idgen

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/binary"
	"strings"
	"sync/atomic"
	"time"
)

var (
	sequence atomic.Uint32
	encoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)
)

// New returns a 16 character ID built from the time in seconds, a process
// wide sequence number and random bytes.
//
//	4 bytes timestamp | 2 bytes sequence | 4 bytes random
func New() string {
	var id [10]byte
	binary.BigEndian.PutUint32(id[0:4], uint32(time.Now().Unix()))
	binary.BigEndian.PutUint16(id[4:6], uint16(sequence.Add(1)))
	if _, err := rand.Read(id[6:]); err != nil {
		binary.BigEndian.PutUint32(id[6:], uint32(time.Now().UnixNano()))
	}
	return encoding.EncodeToString(id[:])
}

// Valid reports whether s looks like an ID returned by New. Client
// supplied request IDs that fail this are replaced.
func Valid(s string) bool {
	if len(s) != 16 {
		return false
	}
	return strings.Trim(s, "abcdefghijklmnopqrstuvwxyz234567") == ""
}
