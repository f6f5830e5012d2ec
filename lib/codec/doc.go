// Copyright 2026 The Flightlog Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Flightlog's standard binary encoding: CBOR
// with Core Deterministic Encoding. Event records and summaries are
// stored as CBOR blobs; deterministic encoding means the same logical
// value always produces identical bytes, which keeps recomputed
// summaries byte-comparable and store writes idempotent.
package codec
