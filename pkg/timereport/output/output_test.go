package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type identity struct {
	LoggedIn  bool   `json:"loggedIn" yaml:"loggedIn"`
	ServerURL string `json:"serverUrl,omitempty" yaml:"serverUrl,omitempty"`
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatText, "text": FormatText, "json": FormatJSON, "yaml": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("table")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format: table")
}

func TestWriteObject_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteObject(buf, FormatJSON, identity{LoggedIn: true, ServerURL: "https://a-1.convex.cloud"}))

	var result map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
	assert.Equal(t, true, result["loggedIn"])
	assert.Equal(t, "https://a-1.convex.cloud", result["serverUrl"])
	assert.Contains(t, buf.String(), "  ", "JSON should be indented with 2 spaces")
}

func TestWriteObject_YAML(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteObject(buf, FormatYAML, identity{LoggedIn: false}))

	var result map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &result))
	assert.Equal(t, false, result["loggedIn"])
	assert.NotContains(t, result, "serverUrl")
}

func TestWriteObject_TextFormat(t *testing.T) {
	err := WriteObject(&bytes.Buffer{}, FormatText, struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text format requires a specific formatter")
}

func TestWriteObject_UnknownFormat(t *testing.T) {
	err := WriteObject(&bytes.Buffer{}, Format("invalid"), struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format: invalid")
}

func TestWriteObject_JSONMarshalError(t *testing.T) {
	// Channels cannot be marshaled to JSON
	err := WriteObject(&bytes.Buffer{}, FormatJSON, make(chan int))
	require.Error(t, err)
}

func TestWriteObject_OutputEndsWithNewline(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			buf := &bytes.Buffer{}
			require.NoError(t, WriteObject(buf, format, map[string]string{"key": "value"}))
			assert.True(t, strings.HasSuffix(buf.String(), "\n"), "output should end with newline")
		})
	}
}

func TestPrinterWritesPlainLinesToNonTerminal(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewPrinter(buf)

	p.Success("Logged in as %s.", "dev@example.com")
	p.Warn("Login cancelled.")
	p.Error("Failed: %v", "boom")
	p.Info("Press Enter to cancel.")
	p.Plain("https://timereport.app/cli-auth")

	assert.Equal(t, strings.Join([]string{
		"Logged in as dev@example.com.",
		"Login cancelled.",
		"Failed: boom",
		"Press Enter to cancel.",
		"https://timereport.app/cli-auth",
	}, "\n")+"\n", buf.String())
}
