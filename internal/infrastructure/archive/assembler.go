// Package archive 负责项目产物的打包与暂存
package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"codecraft-ai-api/internal/workflow/model"
	apperrors "codecraft-ai-api/pkg/errors"
)

// Assembler 把生成的文件打包为内存中的 zip
type Assembler struct{}

func NewAssembler() *Assembler {
	return &Assembler{}
}

// Assemble 打包产物，所有条目置于 projectName/ 目录下
// 缺失的工程底座文件（package.json、.env.example、README.md）会自动补齐。
func (a *Assembler) Assemble(projectName string, artifacts []model.Artifact, routes []byte) ([]byte, error) {
	if len(artifacts) == 0 {
		return nil, apperrors.New(apperrors.CodeArchiveFailed, "没有可打包的文件")
	}

	files := injectBoilerplate(projectName, artifacts)
	if len(routes) > 0 {
		files = append(files, model.Artifact{Path: "api_map.json", Content: string(routes)})
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range files {
		entry, err := w.Create(projectName + "/" + f.Path)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeArchiveFailed, "创建压缩包条目失败")
		}
		if _, err := entry.Write([]byte(f.Content)); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeArchiveFailed, "写入压缩包条目失败")
		}
	}
	if err := w.Close(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeArchiveFailed, "关闭压缩包失败")
	}
	return buf.Bytes(), nil
}

// injectBoilerplate 补齐缺失的工程底座文件
func injectBoilerplate(projectName string, artifacts []model.Artifact) []model.Artifact {
	present := map[string]bool{}
	for _, f := range artifacts {
		present[strings.ToLower(f.Path)] = true
	}

	out := make([]model.Artifact, len(artifacts))
	copy(out, artifacts)

	if !present["package.json"] {
		out = append(out, model.Artifact{Path: "package.json", Content: defaultPackageJSON(projectName)})
	}
	if !present[".env.example"] {
		out = append(out, model.Artifact{Path: ".env.example", Content: defaultEnvExample(projectName)})
	}
	if !present["readme.md"] {
		out = append(out, model.Artifact{Path: "README.md", Content: defaultReadme(projectName)})
	}
	return out
}

func defaultPackageJSON(projectName string) string {
	pkg := map[string]any{
		"name":        projectName,
		"version":     "1.0.0",
		"description": "Generated Express backend",
		"main":        "server.js",
		"scripts": map[string]string{
			"start": "node server.js",
			"dev":   "nodemon server.js",
		},
		"dependencies": map[string]string{
			"express": "^4.18.2",
			"pg":      "^8.11.3",
			"cors":    "^2.8.5",
			"dotenv":  "^16.3.1",
		},
	}
	b, _ := json.MarshalIndent(pkg, "", "  ")
	return string(b) + "\n"
}

func defaultEnvExample(projectName string) string {
	return fmt.Sprintf(`PORT=3000
DB_HOST=localhost
DB_PORT=5432
DB_USER=postgres
DB_PASSWORD=
DB_NAME=%s
`, projectName)
}

func defaultReadme(projectName string) string {
	return fmt.Sprintf(`# %s

Generated Express + PostgreSQL backend.

## Setup

1. Copy .env.example to .env and fill in database credentials.
2. Apply schema.sql to your PostgreSQL database.
3. npm install
4. npm start
`, projectName)
}
