package security

import "strings"

const bearerPrefix = "bearer "

// ExtractBearerToken returns the token from an "Authorization: Bearer <token>"
// header value. The scheme is matched case-insensitively. It returns "", false
// when the scheme is missing, the value is malformed, or the token is empty.
func ExtractBearerToken(header string) (string, bool) {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return "", false
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(v[len(bearerPrefix):])
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}
