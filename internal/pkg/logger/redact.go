package logger

import "strings"

// RedactEmail masks the local part of an address so registration and
// campaign logs never carry a full email. "ada.lovelace@example.com"
// becomes "ad***@example.com"; local parts of two characters or fewer are
// masked entirely, and anything that does not look like an address is
// replaced wholesale.
func RedactEmail(email string) string {
	local, dom, ok := strings.Cut(email, "@")
	if !ok || dom == "" || strings.Contains(dom, "@") {
		return "***@***"
	}
	if len(local) <= 2 {
		return "***@" + dom
	}
	return local[:2] + "***@" + dom
}
