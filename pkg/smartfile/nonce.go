package smartfile

import (
	"math/rand"
	"sync"
	"time"
)

const (
	nonceChars  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	nonceLength = 32
)

// nonceSource is shared by all OAuth instances; uniqueness matters, secrecy
// does not.
var nonceSource = struct {
	mu   sync.Mutex
	rand *rand.Rand
}{rand: rand.New(rand.NewSource(time.Now().UnixNano()))}

func newNonce() string {
	b := make([]byte, nonceLength)
	nonceSource.mu.Lock()
	for i := range b {
		b[i] = nonceChars[nonceSource.rand.Intn(len(nonceChars))]
	}
	nonceSource.mu.Unlock()
	return string(b)
}
