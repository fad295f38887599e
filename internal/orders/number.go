package orders

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewOrderNumber returns ORD-YYYYMMDD-XXXXXXXXXXXX, the date in UTC followed by
// 48 random bits in upper-case hex.
func NewOrderNumber(now time.Time) string {
	id := uuid.New()
	return "ORD-" + now.UTC().Format("20060102") + "-" + strings.ToUpper(hex.EncodeToString(id[:6]))
}
