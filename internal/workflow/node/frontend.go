package node

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"
	"strings"
)

// 前端源码里值得送给模型的文件类型
var frontendExtensions = map[string]bool{
	".js":   true,
	".jsx":  true,
	".ts":   true,
	".tsx":  true,
	".vue":  true,
	".html": true,
	".css":  true,
	".json": true,
}

// 不参与分析的目录
var skippedDirs = []string{"node_modules/", "dist/", "build/", ".git/", "coverage/"}

const (
	maxFrontendFiles     = 40
	maxFrontendFileBytes = 64 * 1024
	maxFrontendTotal     = 512 * 1024
)

// ExtractFrontendCode 解包前端压缩包，把源码文件拼接为一段带路径标注的文本
// 跳过依赖与构建产物目录，超出体积预算时截断。
func ExtractFrontendCode(data []byte) (string, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read frontend archive: %w", err)
	}

	var b strings.Builder
	files := 0
	for _, f := range r.File {
		if files >= maxFrontendFiles || b.Len() >= maxFrontendTotal {
			break
		}
		if f.FileInfo().IsDir() || !wantFrontendFile(f.Name) {
			continue
		}
		if f.UncompressedSize64 > maxFrontendFileBytes {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			continue
		}
		var content bytes.Buffer
		_, copyErr := content.ReadFrom(rc)
		rc.Close()
		if copyErr != nil {
			continue
		}

		fmt.Fprintf(&b, "=== %s ===\n%s\n\n", f.Name, strings.TrimRight(content.String(), "\n"))
		files++
	}

	if files == 0 {
		return "", fmt.Errorf("no usable source files in frontend archive")
	}
	return b.String(), nil
}

func wantFrontendFile(name string) bool {
	clean := strings.ReplaceAll(name, "\\", "/")
	for _, dir := range skippedDirs {
		if strings.Contains(clean, dir) {
			return false
		}
	}
	return frontendExtensions[strings.ToLower(path.Ext(clean))]
}
