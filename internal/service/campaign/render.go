package campaign

import (
	"fmt"
	"strings"

	"github.com/osteele/liquid"

	"github.com/ignite/eventcrm/internal/domain"
)

// Renderer compiles campaign bodies and subjects with Liquid merge tags.
// Unknown variables render as empty strings, so "Hi {{first_name}}," with
// no first name degrades to "Hi ," rather than failing the recipient.
type Renderer struct {
	engine *liquid.Engine
}

// NewRenderer builds the shared Liquid engine with the merge-tag filters.
func NewRenderer() *Renderer {
	engine := liquid.NewEngine()

	// {{ first_name | default: "Friend" }}
	engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		s := fmt.Sprintf("%v", value)
		if s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})

	// {{ name | capitalize }}
	engine.RegisterFilter("capitalize", func(s string) string {
		if len(s) == 0 {
			return s
		}
		return strings.ToUpper(string(s[0])) + strings.ToLower(s[1:])
	})

	return &Renderer{engine: engine}
}

// Template is a compiled subject+body pair, parsed once per campaign and
// rendered once per recipient.
type Template struct {
	subject *liquid.Template
	body    *liquid.Template
}

// Parse compiles the campaign's subject and body.
func (r *Renderer) Parse(subject, body string) (*Template, error) {
	st, err := r.engine.ParseString(subject)
	if err != nil {
		return nil, fmt.Errorf("parse subject: %w", err)
	}
	bt, err := r.engine.ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("parse body: %w", err)
	}
	return &Template{subject: st, body: bt}, nil
}

// Render produces the per-recipient subject and body.
func (t *Template) Render(c *domain.Contact) (subject, body string, err error) {
	bindings := map[string]interface{}{
		"first_name": c.FirstName,
		"last_name":  c.LastName,
		"email":      c.Email,
	}
	subject, err = t.subject.RenderString(bindings)
	if err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	body, err = t.body.RenderString(bindings)
	if err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	return subject, body, nil
}
