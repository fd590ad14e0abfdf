package seal

import "encoding/base64"

// Sealed tokens are base64url without padding so they can travel safely
// in URLs, headers, and database text columns.

func encodeToken(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeToken(token string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(token)
}
