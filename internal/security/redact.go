// Package security masks credentials before they reach logs or output, and
// sanitises user-supplied symbols.
package security

import (
	"net/url"
	"strings"
	"unicode"
)

// sensitiveParams are query parameters whose values are credentials.
var sensitiveParams = map[string]bool{
	"apikey":       true,
	"api_key":      true,
	"key":          true,
	"token":        true,
	"access_token": true,
	"password":     true,
	"secret":       true,
}

// MaskCredential masks a credential value for logging.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// RedactURL masks the password and credential query parameters of a URL.
// Values that do not parse as URLs are returned unchanged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return raw
	}

	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
	}

	if u.RawQuery != "" {
		q := u.Query()
		for name, values := range q {
			if !sensitiveParams[strings.ToLower(name)] {
				continue
			}
			for i := range values {
				values[i] = MaskCredential(values[i])
			}
		}
		u.RawQuery = q.Encode()
	}

	return u.String()
}

// SanitizeSymbol upper-cases a ticker and drops characters no exchange uses.
// Dots, carets, dashes and equals signs survive for symbols like BRK-B,
// RELIANCE.NS, ^GSPC and EURUSD=X, and colons for Kite's NSE:INFY form.
func SanitizeSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	var result strings.Builder
	for _, r := range symbol {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("&-.^=:", r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}
