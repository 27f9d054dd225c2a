package orders

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const orderNumberPrefix = "SK"

// NewOrderNumber generates the human-readable external order identifier, e.g.
// SK-20260828-483920. A unique index on the column catches the rare collision;
// callers retry with a fresh number.
func NewOrderNumber(now time.Time) string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	suffix := int64(0)
	if err == nil {
		suffix = n.Int64()
	} else {
		suffix = now.UnixNano() % 1000000
	}
	return fmt.Sprintf("%s-%s-%06d", orderNumberPrefix, now.Format("20060102"), suffix)
}
