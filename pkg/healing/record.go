package healing

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/devicelab-dev/selfheal/pkg/locator"
)

// HealingRecord captures one successful healing event.
type HealingRecord struct {
	ID              string          `json:"id"`
	Original        locator.Locator `json:"original"`
	Healed          locator.Locator `json:"healed"`
	Strategy        string          `json:"strategy"`
	Confidence      float64         `json:"confidence"`
	PageFingerprint string          `json:"pageFingerprint"`
	Timestamp       time.Time       `json:"timestamp"`
	// Duration is how long the healing search took, exact attempt
	// included.
	Duration time.Duration `json:"duration"`
	// CacheHit marks healings served from the cache rather than a
	// strategy search.
	CacheHit bool `json:"cacheHit"`
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// newRecordID returns a sortable unique id for a healing record.
func newRecordID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
