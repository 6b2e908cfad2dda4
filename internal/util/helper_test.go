package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeNetwork(t *testing.T) {
	cases := map[string]string{
		"TRC20":      "trc20",
		"tron":       "trc20",
		"usdt_trc20": "trc20",
		"ERC20":      "erc20",
		"eth":        "erc20",
		"Ethereum":   "erc20",
		"usdt_erc20": "erc20",
		"bep20":      "bep20",
	}
	for input, want := range cases {
		assert.Equal(t, want, NormalizeNetwork(input), "input %q", input)
	}
}

func TestIsValidNetwork(t *testing.T) {
	assert.True(t, IsValidNetwork("trc20"))
	assert.True(t, IsValidNetwork("erc20"))
	assert.False(t, IsValidNetwork("bep20"))
	assert.False(t, IsValidNetwork(""))
	assert.False(t, IsValidNetwork("TRC20"), "expects normalized input")
}

func TestSameAddress(t *testing.T) {
	assert.True(t, SameAddress("0xDAC17F958D2ee523a2206206994597C13D831ec7", "0xdac17f958d2ee523a2206206994597c13d831ec7"))
	assert.True(t, SameAddress("TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t", "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"))
	assert.False(t, SameAddress("0xabc", "0xdef"))
}

func TestMaskAddress(t *testing.T) {
	assert.Equal(t, "TR7NHq...Lj6t", MaskAddress("TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"))
	assert.Equal(t, "short", MaskAddress("short"))
}

func TestGenerateIdentifiers(t *testing.T) {
	id := GenerateIntentID()
	assert.True(t, strings.HasPrefix(id, "pi_"))
	assert.NotEqual(t, id, GenerateIntentID())

	key := GenerateAPIKey()
	assert.True(t, strings.HasPrefix(key, "ck_"))
	assert.Len(t, key, 3+32)

	secret := GenerateWebhookSecret()
	assert.True(t, strings.HasPrefix(secret, "whsec_"))
	assert.Len(t, secret, 6+32)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("admin123")
	assert.NoError(t, err)
	assert.True(t, CheckPassword("admin123", hash))
	assert.False(t, CheckPassword("wrong", hash))
}
