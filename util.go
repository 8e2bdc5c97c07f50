// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xchg

// roundUpToPowerOfTwo rounds n up to the next power of two. Used by the
// bounded queue constructors, which silently round capacity; the ring
// buffer and broadcast channel constructors do not use this — their
// wire layout is shared with other processes that must agree on the
// exact capacity, so a mismatch is a constructor error instead.
func roundUpToPowerOfTwo(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// isPowerOfTwo reports whether n is a positive power of two.
func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// alignUp rounds n up to the next multiple of align (align must be a
// power of two).
func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}
