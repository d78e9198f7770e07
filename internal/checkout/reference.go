package checkout

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
)

// referenceEncoding is Crockford base32: no padding, no easily confused
// characters (I, L, O, U), so the reference survives being read aloud.
var referenceEncoding = base32.NewEncoding("0123456789ABCDEFGHJKMNPQRSTVWXYZ").WithPadding(base32.NoPadding)

// MintReference produces a short human-readable order reference such as
// SF-7KQ2M9XH. It is shown to customers and support staff; lookups still go
// through the order id.
func MintReference() (string, error) {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate order reference: %w", err)
	}
	return "SF-" + referenceEncoding.EncodeToString(buf), nil
}
