package archive_test

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codecraft-ai-api/internal/infrastructure/archive"
	"codecraft-ai-api/internal/workflow/model"
	apperrors "codecraft-ai-api/pkg/errors"
)

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	files := map[string]string{}
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		files[f.Name] = string(content)
	}
	return files
}

func TestAssemble(t *testing.T) {
	artifacts := []model.Artifact{
		{Path: "server.js", Content: "const app = require('express')();"},
		{Path: "routes/users.js", Content: "module.exports = router;"},
	}
	routes := []byte(`[{"method":"GET","path":"/users"}]`)

	data, err := archive.NewAssembler().Assemble("shop_backend", artifacts, routes)
	require.NoError(t, err)

	files := readZip(t, data)
	assert.Contains(t, files, "shop_backend/server.js")
	assert.Contains(t, files, "shop_backend/routes/users.js")
	assert.Contains(t, files, "shop_backend/api_map.json")
	assert.Equal(t, `[{"method":"GET","path":"/users"}]`, files["shop_backend/api_map.json"])
}

func TestAssemble_InjectsBoilerplate(t *testing.T) {
	artifacts := []model.Artifact{
		{Path: "server.js", Content: "x"},
	}

	data, err := archive.NewAssembler().Assemble("demo", artifacts, nil)
	require.NoError(t, err)

	files := readZip(t, data)
	assert.Contains(t, files, "demo/package.json")
	assert.Contains(t, files, "demo/.env.example")
	assert.Contains(t, files, "demo/README.md")
	assert.Contains(t, files["demo/package.json"], `"demo"`)
}

func TestAssemble_KeepsProvidedBoilerplate(t *testing.T) {
	artifacts := []model.Artifact{
		{Path: "server.js", Content: "x"},
		{Path: "package.json", Content: `{"name":"custom"}`},
	}

	data, err := archive.NewAssembler().Assemble("demo", artifacts, nil)
	require.NoError(t, err)

	files := readZip(t, data)
	assert.Equal(t, `{"name":"custom"}`, files["demo/package.json"])
}

func TestAssemble_Empty(t *testing.T) {
	_, err := archive.NewAssembler().Assemble("demo", nil, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeArchiveFailed, apperrors.AsAppError(err).Code)
}
