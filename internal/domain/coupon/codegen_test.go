package coupon

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShareCode_EncodesIssueMonth(t *testing.T) {
	code := shareCode(2025, time.March)

	assert.True(t, strings.HasPrefix(code, "SHARE2503-"))
	assert.Len(t, code, len("SHARE2503-")+shareSuffixLen)
}

func TestShareCode_TwoDigitYearWraps(t *testing.T) {
	code := shareCode(2107, time.December)

	assert.True(t, strings.HasPrefix(code, "SHARE0712-"))
}

func TestDiscountCode_Shape(t *testing.T) {
	code := discountCode()

	assert.True(t, strings.HasPrefix(code, "COMP-"))
	assert.Len(t, code, len("COMP-")+discountSuffixLen)
}

func TestRandomSuffix_UsesUnambiguousAlphabet(t *testing.T) {
	suffix := randomSuffix(200)

	for _, r := range suffix {
		assert.Contains(t, codeAlphabet, string(r))
	}
	assert.NotContains(t, suffix, "0")
	assert.NotContains(t, suffix, "O")
	assert.NotContains(t, suffix, "1")
	assert.NotContains(t, suffix, "I")
	assert.NotContains(t, suffix, "L")
}
