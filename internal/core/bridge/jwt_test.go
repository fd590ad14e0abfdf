package bridge

import (
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeJWT builds an unsigned JWT whose payload carries the given claims
// JSON. The signature part is junk; parsing never verifies it.
func makeJWT(claimsJSON string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(claimsJSON))
	return header + "." + payload + ".signature"
}

func TestParseTokenExpiry(t *testing.T) {
	t.Run("extracts exp claim", func(t *testing.T) {
		exp := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
		token := makeJWT(fmt.Sprintf(`{"sub":"did:plc:abc","exp":%d}`, exp.Unix()))

		parsed, err := parseTokenExpiry(token)
		require.NoError(t, err)
		assert.True(t, parsed.ExpiresAt.Equal(exp))
	})

	t.Run("strips bearer prefix", func(t *testing.T) {
		exp := time.Now().Add(time.Hour).Unix()
		token := "Bearer " + makeJWT(fmt.Sprintf(`{"exp":%d}`, exp))

		parsed, err := parseTokenExpiry(token)
		require.NoError(t, err)
		assert.Equal(t, exp, parsed.ExpiresAt.Unix())
	})

	t.Run("rejects non-JWT input", func(t *testing.T) {
		_, err := parseTokenExpiry("not-a-jwt")
		assert.Error(t, err)
	})

	t.Run("rejects undecodable payload", func(t *testing.T) {
		_, err := parseTokenExpiry("aGVhZGVy.!!!not-base64!!!.c2ln")
		assert.Error(t, err)
	})

	t.Run("rejects missing exp claim", func(t *testing.T) {
		_, err := parseTokenExpiry(makeJWT(`{"sub":"did:plc:abc"}`))
		assert.Error(t, err)
	})

	t.Run("rejects empty token", func(t *testing.T) {
		_, err := parseTokenExpiry("")
		assert.Error(t, err)
	})
}
