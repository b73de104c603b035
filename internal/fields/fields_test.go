package fields

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alexjbarnes/status-mcp/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Parses(t *testing.T) {
	tbl, err := Default()
	require.NoError(t, err)
	require.NotEmpty(t, tbl.Fields)
	assert.Equal(t, "api_token", tbl.Fields[0].Name)
	assert.True(t, tbl.Fields[0].Secret)
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"empty":     "fields: []",
		"no name":   "fields:\n  - label: x",
		"duplicate": "fields:\n  - name: a\n  - name: a",
		"format":    "fields:\n  - name: a\n    format: phone",
		"yaml":      "fields: [",
	}
	for name, doc := range tests {
		_, err := Parse([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestParse_Defaults(t *testing.T) {
	tbl, err := Parse([]byte("fields:\n  - name: region\n"))
	require.NoError(t, err)
	assert.Equal(t, FormatText, tbl.Fields[0].Format)
	assert.Equal(t, "region", tbl.Fields[0].Label)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fields.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fields:\n  - name: token\n    required: true\n"), 0o600))

	tbl, err := Load(path)
	require.NoError(t, err)
	require.Len(t, tbl.Fields, 1)
	assert.True(t, tbl.Fields[0].Required)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tbl, err := Default()
	require.NoError(t, err)

	problems := tbl.Validate(models.TenantConfig{})
	require.Len(t, problems, 2)
	assert.Equal(t, "api_token", problems[0].Field)
	assert.Equal(t, "workspace", problems[1].Field)

	problems = tbl.Validate(models.TenantConfig{
		"api_token":     "t",
		"workspace":     "w",
		"base_url":      "ftp://example.com",
		"contact_email": "not an email",
	})
	require.Len(t, problems, 2)
	assert.Equal(t, "base_url", problems[0].Field)
	assert.Equal(t, "contact_email", problems[1].Field)

	assert.Empty(t, tbl.Validate(models.TenantConfig{
		"api_token":     "t",
		"workspace":     "w",
		"base_url":      "https://status.example.com",
		"contact_email": "ops@example.com",
	}))
}

func TestValidate_MaxLength(t *testing.T) {
	tbl, err := Parse([]byte("fields:\n  - name: w\n    max_length: 3\n"))
	require.NoError(t, err)
	assert.Len(t, tbl.Validate(models.TenantConfig{"w": "abcd"}), 1)
	assert.Empty(t, tbl.Validate(models.TenantConfig{"w": "äöü"}))
}

func TestExtract_NormalizesAndDropsUnknown(t *testing.T) {
	tbl, err := Default()
	require.NoError(t, err)

	values := map[string]string{
		"api_token": "  tok  ",
		"workspace": "cafe\u0301",
		"unknown":   "ignored",
	}
	cfg := tbl.Extract(func(name string) string { return values[name] })

	assert.Equal(t, models.TenantConfig{"api_token": "tok", "workspace": "caf\u00e9"}, cfg)
}

func TestPublic_MasksSecrets(t *testing.T) {
	tbl, err := Default()
	require.NoError(t, err)

	out := tbl.Public(models.TenantConfig{"api_token": "tok", "workspace": "acme"})
	assert.Equal(t, map[string]string{"api_token": "********", "workspace": "acme"}, out)
}
