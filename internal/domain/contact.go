package domain

import (
	"net/url"
	"strings"
	"time"
)

// Contact represents a single person known to the CRM. Contacts are created
// on first registration or import and are never hard-deleted by the core.
type Contact struct {
	ID              string            `json:"id" db:"id"`
	Email           string            `json:"email" db:"email"`
	FirstName       string            `json:"first_name" db:"first_name"`
	LastName        string            `json:"last_name" db:"last_name"`
	Phone           string            `json:"phone" db:"phone"`
	Unsubscribed    bool              `json:"unsubscribed" db:"unsubscribed"`
	EngagementScore float64           `json:"engagement_score" db:"engagement_score"`
	ExternalIDs     map[string]string `json:"external_ids" db:"external_ids"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// FullName joins the name fields, tolerating either being empty.
func (c *Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// NormalizeEmail lowercases and trims an email address so that lookups and
// uniqueness checks are case-insensitive everywhere.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail performs basic structural email validation.
func ValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if len(email) < 3 || len(email) > 254 {
		return false
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	local, dom := parts[0], parts[1]
	if len(local) == 0 || len(local) > 64 {
		return false
	}
	if len(dom) == 0 || len(dom) > 253 || !strings.Contains(dom, ".") {
		return false
	}
	_, err := url.Parse("mailto:" + email)
	return err == nil
}
