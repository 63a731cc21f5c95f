package coupon

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Ambiguous characters (0/O, 1/I/L) are excluded so codes survive being
// read over the phone.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	shareCodePrefix    = "SHARE"
	discountCodePrefix = "COMP"

	shareSuffixLen    = 6
	discountSuffixLen = 8
)

// shareCode builds a candidate share-coupon code. The prefix encodes the
// issue month so codes are self-describing; the suffix is random and the
// store's unique constraint is the real uniqueness guarantee.
func shareCode(year int, month time.Month) string {
	return fmt.Sprintf("%s%02d%02d-%s", shareCodePrefix, year%100, int(month), randomSuffix(shareSuffixLen))
}

// discountCode builds a discount code. Unlike share codes there is no
// collision-retry loop around this; the suffix space makes a clash
// unlikely, and the gap is deliberate until the business decides
// otherwise.
func discountCode() string {
	return fmt.Sprintf("%s-%s", discountCodePrefix, randomSuffix(discountSuffixLen))
}

func randomSuffix(length int) string {
	max := big.NewInt(int64(len(codeAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform's entropy source
			// is broken; there is no sensible recovery.
			panic(err)
		}
		out[i] = codeAlphabet[n.Int64()]
	}
	return string(out)
}
