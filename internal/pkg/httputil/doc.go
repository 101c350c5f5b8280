// Package httputil provides small helpers for writing consistent JSON
// responses and the shared API error envelope.
package httputil
