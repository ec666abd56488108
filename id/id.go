// Package id generates identifiers for reconciliation cycles.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu   sync.Mutex
	mono io.Reader
)

func init() {
	// Entropy comes from a PRNG seeded once from crypto/rand. Wrapping it in
	// ulid.Monotonic keeps ids minted in the same millisecond increasing.
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns a ULID string identifying one reconciliation cycle.
//
// Cycle ids sort lexicographically by start time, so grepping a log for
// "cycle=" lists cycles in the order they ran, even several per millisecond.
func New() string {
	mu.Lock()
	defer mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), mono)
	if err != nil {
		// Only possible if the clock runs backwards past the ULID epoch or the
		// monotonic entropy overflows within one millisecond.
		panic(err)
	}
	return id.String()
}
