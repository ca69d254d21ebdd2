package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewNumber generates a human-readable booking number, prefixed by kind:
// QT- for quotes, ORD- for rental/sale orders, PKG- for package bookings.
func NewNumber(kind Kind, quote bool, now time.Time) string {
	prefix := "ORD"
	switch {
	case quote:
		prefix = "QT"
	case kind == KindPackage:
		prefix = "PKG"
	}
	suffix := strings.ToUpper(uuid.NewString()[:8])
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), suffix)
}
