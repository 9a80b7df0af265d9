package node_test

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codecraft-ai-api/internal/workflow/node"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExtractFrontendCode(t *testing.T) {
	data := buildZip(t, map[string]string{
		"src/App.jsx":                 "export default function App() {}",
		"src/api/users.js":            "fetch('/api/users')",
		"node_modules/react/index.js": "module.exports = {}",
		"dist/bundle.js":              "!function(){}",
		"logo.png":                    "binary",
	})

	code, err := node.ExtractFrontendCode(data)
	require.NoError(t, err)

	assert.Contains(t, code, "=== src/App.jsx ===")
	assert.Contains(t, code, "fetch('/api/users')")
	assert.NotContains(t, code, "node_modules")
	assert.NotContains(t, code, "dist/bundle.js")
	assert.NotContains(t, code, "logo.png")
}

func TestExtractFrontendCode_NoUsableFiles(t *testing.T) {
	data := buildZip(t, map[string]string{
		"logo.png":   "binary",
		"readme.txt": "hello",
	})

	_, err := node.ExtractFrontendCode(data)
	assert.Error(t, err)
}

func TestExtractFrontendCode_NotAZip(t *testing.T) {
	_, err := node.ExtractFrontendCode([]byte("definitely not a zip"))
	assert.Error(t, err)
}
