// Package fields describes the tenant configuration accepted on the
// connect form. The same table drives server-side validation, the
// rendered form, and the /connect/schema endpoint.
package fields

import (
	_ "embed"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/alexjbarnes/status-mcp/internal/models"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Supported field formats.
const (
	FormatText  = "text"
	FormatURL   = "url"
	FormatEmail = "email"
)

//go:embed default_fields.yaml
var defaultTable []byte

// Field describes one configuration key.
type Field struct {
	Name        string `yaml:"name" json:"name"`
	Label       string `yaml:"label" json:"label"`
	Format      string `yaml:"format" json:"format"`
	Required    bool   `yaml:"required" json:"required"`
	Secret      bool   `yaml:"secret" json:"secret"`
	MaxLength   int    `yaml:"max_length,omitempty" json:"max_length,omitempty"`
	Placeholder string `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Help        string `yaml:"help,omitempty" json:"help,omitempty"`
}

// Table is an ordered list of field descriptors.
type Table struct {
	Fields []Field `yaml:"fields" json:"fields"`
}

// Problem is a single validation failure, addressed to a field.
type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (p Problem) String() string {
	return p.Field + ": " + p.Message
}

// Default returns the embedded field table.
func Default() (*Table, error) {
	return Parse(defaultTable)
}

// Load reads a table from path, or the embedded default when path is
// empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading field table: %w", err)
	}

	return Parse(data)
}

// Parse decodes and checks a YAML field table.
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing field table: %w", err)
	}

	if len(t.Fields) == 0 {
		return nil, errors.New("field table has no fields")
	}

	seen := make(map[string]struct{}, len(t.Fields))

	for i := range t.Fields {
		f := &t.Fields[i]
		if f.Name == "" {
			return nil, fmt.Errorf("field %d has no name", i+1)
		}

		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("duplicate field %q", f.Name)
		}

		seen[f.Name] = struct{}{}

		switch f.Format {
		case "":
			f.Format = FormatText
		case FormatText, FormatURL, FormatEmail:
		default:
			return nil, fmt.Errorf("field %q has unknown format %q", f.Name, f.Format)
		}

		if f.Label == "" {
			f.Label = f.Name
		}
	}

	return &t, nil
}

// Normalize trims and NFC-normalises s so visually identical input
// compares equal.
func Normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Extract pulls the table's fields out of a lookup function (form values
// or a JSON object), normalising each value. Unknown keys are ignored.
func (t *Table) Extract(get func(name string) string) models.TenantConfig {
	cfg := make(models.TenantConfig, len(t.Fields))

	for _, f := range t.Fields {
		if v := Normalize(get(f.Name)); v != "" {
			cfg[f.Name] = v
		}
	}

	return cfg
}

// Validate checks cfg against the table and returns every problem found,
// in table order. An empty result means cfg is acceptable.
func (t *Table) Validate(cfg models.TenantConfig) []Problem {
	var problems []Problem

	for _, f := range t.Fields {
		v := cfg[f.Name]
		if v == "" {
			if f.Required {
				problems = append(problems, Problem{Field: f.Name, Message: "is required"})
			}

			continue
		}

		if f.MaxLength > 0 && utf8.RuneCountInString(v) > f.MaxLength {
			problems = append(problems, Problem{Field: f.Name, Message: fmt.Sprintf("must be at most %d characters", f.MaxLength)})
			continue
		}

		switch f.Format {
		case FormatURL:
			u, err := url.Parse(v)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				problems = append(problems, Problem{Field: f.Name, Message: "must be an absolute http(s) URL"})
			}
		case FormatEmail:
			if addr, err := mail.ParseAddress(v); err != nil || addr.Address != v {
				problems = append(problems, Problem{Field: f.Name, Message: "must be an email address"})
			}
		}
	}

	return problems
}

// Public returns a copy of cfg with secret fields masked, for logs and
// tool output.
func (t *Table) Public(cfg models.TenantConfig) map[string]string {
	out := make(map[string]string, len(cfg))

	for _, f := range t.Fields {
		v, ok := cfg[f.Name]
		if !ok {
			continue
		}

		if f.Secret {
			v = "********"
		}

		out[f.Name] = v
	}

	return out
}
