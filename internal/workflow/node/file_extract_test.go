package node_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codecraft-ai-api/internal/workflow/node"
)

func TestExtractFiles_JSONFileMap(t *testing.T) {
	output := `{
  "routes/users.js": "const express = require('express');",
  "controllers/usersController.js": "exports.list = async (req, res) => {};"
}`
	files := node.ExtractFiles(output)
	require.Len(t, files, 2)
	// JSON 形态按路径排序
	assert.Equal(t, "controllers/usersController.js", files[0].Path)
	assert.Equal(t, "routes/users.js", files[1].Path)
	assert.Contains(t, files[1].Content, "require('express')")
}

func TestExtractFiles_TruncatedJSONFileMap(t *testing.T) {
	// 截断的 JSON 映射经修复后仍可提取
	output := `{"routes/users.js": "module.exports = router;",`

	files := node.ExtractFiles(output)
	require.Len(t, files, 1)
	assert.Equal(t, "routes/users.js", files[0].Path)
	assert.Equal(t, "module.exports = router;", files[0].Content)
}

func TestExtractFiles_FilenameTag(t *testing.T) {
	output := "```js filename:routes/orders.js\nconst router = require('express').Router();\n```"

	files := node.ExtractFiles(output)
	require.Len(t, files, 1)
	assert.Equal(t, "routes/orders.js", files[0].Path)
	assert.Equal(t, "const router = require('express').Router();\n", files[0].Content)
}

func TestExtractFiles_BoldHeader(t *testing.T) {
	output := "Here are the files:\n\n**routes/products.js**\n```js\nmodule.exports = router;\n```\n"

	files := node.ExtractFiles(output)
	require.Len(t, files, 1)
	assert.Equal(t, "routes/products.js", files[0].Path)
}

func TestExtractFiles_MarkdownHeader(t *testing.T) {
	output := "### `controllers/productsController.js`\n```js\nexports.list = async () => {};\n```\n"

	files := node.ExtractFiles(output)
	require.Len(t, files, 1)
	assert.Equal(t, "controllers/productsController.js", files[0].Path)
}

func TestExtractFiles_CommentPath(t *testing.T) {
	output := "```js\n// routes/categories.js\nconst router = require('express').Router();\n```"

	files := node.ExtractFiles(output)
	require.Len(t, files, 1)
	assert.Equal(t, "routes/categories.js", files[0].Path)
	assert.NotContains(t, files[0].Content, "routes/categories.js")
}

func TestExtractFiles_AnonymousFallback(t *testing.T) {
	output := "```sql\nCREATE TABLE users (id SERIAL PRIMARY KEY);\n```\n\n```\nplain text\n```"

	files := node.ExtractFiles(output)
	require.Len(t, files, 2)
	assert.Equal(t, "generated_1.sql", files[0].Path)
	assert.Equal(t, "generated_2.txt", files[1].Path)
}

func TestExtractFiles_RejectsUnsafePaths(t *testing.T) {
	output := "```js filename:/etc/passwd\nnope\n```\n\n```js filename:../escape.js\nnope\n```"

	files := node.ExtractFiles(output)
	assert.Empty(t, files)
}

func TestExtractFiles_DuplicatePathLastWins(t *testing.T) {
	output := "```js filename:app.js\nfirst\n```\n\n```js filename:app.js\nsecond\n```"

	files := node.ExtractFiles(output)
	require.Len(t, files, 1)
	assert.Equal(t, "second\n", files[0].Content)
}

func TestExtractAPIRoutes(t *testing.T) {
	files := []node.ExtractedFile{
		{Path: "routes/users.js", Content: `
router.get('/users', controller.list);
router.post('/users', controller.create);
router.get('/users', controller.list);
app.delete('/users/:id', controller.remove);
`},
		{Path: "README.md", Content: "router.get('/ignored', x)"},
	}

	routes := node.ExtractAPIRoutes(files)
	require.Len(t, routes, 3)
	assert.Equal(t, node.APIRoute{Method: "GET", Path: "/users"}, routes[0])
	assert.Equal(t, node.APIRoute{Method: "POST", Path: "/users"}, routes[1])
	assert.Equal(t, node.APIRoute{Method: "DELETE", Path: "/users/:id"}, routes[2])
}
