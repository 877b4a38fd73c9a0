package qga

import (
	"math/rand"
	"sync/atomic"
)

// Sync ids only need to differ between consecutive handshakes within this
// process, so a counter with a random starting point is enough.
var nonce atomic.Int64

func init() {
	nonce.Store(rand.Int63n(1 << 31))
}

func nextNonce() int64 {
	return nonce.Add(1)
}
