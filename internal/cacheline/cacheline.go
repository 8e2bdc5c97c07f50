// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cacheline holds the false-sharing-avoidance constants shared
// by every component in xchg: the bounded queues, the ring buffer
// trailer, the broadcast trailer, and the counters fabric all need the
// same "put this field on its own cache line" padding.
package cacheline

// Length is the assumed cache line size in bytes. 64 bytes covers every
// mainstream amd64/arm64 part this fabric targets; a wrong guess costs
// throughput under contention, never correctness.
const Length = 64

// Pad is a full cache line of padding, used between control words that
// must never share a line (e.g. a queue's head and tail).
type Pad [Length]byte

// PadAfter8 pads out the remainder of a cache line following an 8-byte
// field embedded directly in a struct (as opposed to a [Pad] used as a
// standalone spacer field).
type PadAfter8 [Length - 8]byte
