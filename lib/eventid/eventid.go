// Copyright 2026 The Flightlog Authors
// SPDX-License-Identifier: Apache-2.0

// Package eventid generates the identifiers for stored event records.
//
// An event id is a 24-character lowercase hex token: a 16-digit
// zero-padded Unix-nanosecond prefix followed by an 8-digit random
// suffix. The time prefix makes ids lexicographically sortable in
// event-time order; the random suffix keeps ids generated within the
// same nanosecond (or by clocks that have jumped backwards) unique.
package eventid

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// encodedLength is the total id length: 16 hex digits of time plus
// 8 hex digits of randomness.
const encodedLength = 24

// New returns a fresh identifier for an event observed at t. Ids are
// never reused: even with identical timestamps the random suffix
// collides with probability 2^-32 per pair.
func New(t time.Time) string {
	random := uuid.New()
	suffix := binary.BigEndian.Uint32(random[:4])
	return fmt.Sprintf("%016x%08x", uint64(t.UnixNano()), suffix)
}

// Time recovers the timestamp prefix of an id. Used for diagnostics
// only; the authoritative timestamp lives in the stored record.
func Time(id string) (time.Time, error) {
	if len(id) != encodedLength {
		return time.Time{}, fmt.Errorf("eventid: bad length %d, want %d", len(id), encodedLength)
	}
	nanos, err := strconv.ParseUint(id[:16], 16, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("eventid: bad time prefix: %w", err)
	}
	return time.Unix(0, int64(nanos)).UTC(), nil
}

// Valid reports whether id has the shape produced by New. It does not
// check that the embedded time is plausible.
func Valid(id string) bool {
	if len(id) != encodedLength {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}
