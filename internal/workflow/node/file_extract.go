package node

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ExtractedFile 从模型输出中还原的一个文件
type ExtractedFile struct {
	Path    string
	Content string
}

var (
	// ```js filename:src/app.js
	fenceHeaderRe = regexp.MustCompile("(?m)^```([a-zA-Z0-9+#-]*)[ \t]*(?:filename[:=][ \t]*([^\n`]+))?$")
	// **src/app.js** 或 ### src/app.js / ### `src/app.js`
	boldPathRe     = regexp.MustCompile(`(?m)^\*\*[\x60]?([\w./\\-]+\.[A-Za-z0-9]+)[\x60]?\*\*[:：]?\s*$`)
	markdownPathRe = regexp.MustCompile(`(?m)^#{1,6}\s+[\x60]?([\w./\\-]+\.[A-Za-z0-9]+)[\x60]?\s*$`)
	// 代码块首行注释里的路径：// src/app.js  或  # requirements.txt
	commentPathRe = regexp.MustCompile(`^(?://|#|--|<!--)\s*([\w./\\-]+\.[A-Za-z0-9]+)\s*(?:-->)?\s*$`)
)

// langExtensions 匿名代码块按语言猜测扩展名
var langExtensions = map[string]string{
	"javascript": "js",
	"js":         "js",
	"typescript": "ts",
	"ts":         "ts",
	"json":       "json",
	"sql":        "sql",
	"yaml":       "yaml",
	"yml":        "yml",
	"sh":         "sh",
	"bash":       "sh",
	"dockerfile": "dockerfile",
	"env":        "env",
	"markdown":   "md",
	"md":         "md",
}

// ExtractFiles 从模型输出中解析生成的文件，支持多种输出形态：
//  1. 整体为 JSON 对象：路径 -> 文件内容
//  2. 代码围栏带 filename: 标记
//  3. 围栏前的 **粗体** 或 Markdown 标题路径
//  4. 围栏首行注释中的路径
//  5. 兜底：匿名代码块按序命名
//
// 返回结果保持出现顺序，同一路径以后出现者为准。
func ExtractFiles(output string) []ExtractedFile {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return nil
	}

	// 形态 1：整体就是 path -> content 的 JSON 对象
	if files := extractJSONFileMap(trimmed); len(files) > 0 {
		return files
	}

	var files []ExtractedFile
	seen := map[string]int{}
	add := func(path, content string) {
		path = cleanPath(path)
		if path == "" {
			return
		}
		content = strings.TrimRight(content, "\n") + "\n"
		if i, ok := seen[path]; ok {
			files[i].Content = content
			return
		}
		seen[path] = len(files)
		files = append(files, ExtractedFile{Path: path, Content: content})
	}

	anonymous := 0
	blocks := splitFencedBlocks(trimmed)
	for _, blk := range blocks {
		path := blk.filename
		content := blk.content

		if path == "" {
			// 围栏首行注释里的路径
			if first, rest, ok := splitFirstLine(content); ok {
				if m := commentPathRe.FindStringSubmatch(strings.TrimSpace(first)); m != nil {
					path = m[1]
					content = rest
				}
			}
		}
		if path == "" {
			path = headerBefore(trimmed, blk.start)
		}
		if path == "" {
			anonymous++
			path = anonymousName(anonymous, blk.lang)
		}
		add(path, content)
	}
	return files
}

// extractJSONFileMap 尝试把输出整体解析为 path -> content 映射
func extractJSONFileMap(s string) []ExtractedFile {
	raw, err := NewExtractor(DefaultRepairAttempts).Extract(s)
	if err != nil {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil || len(m) == 0 {
		return nil
	}
	paths := make([]string, 0, len(m))
	for p := range m {
		if cleanPath(p) == "" {
			return nil
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)
	files := make([]ExtractedFile, 0, len(paths))
	for _, p := range paths {
		files = append(files, ExtractedFile{
			Path:    cleanPath(p),
			Content: strings.TrimRight(m[p], "\n") + "\n",
		})
	}
	return files
}

type fencedBlock struct {
	lang     string
	filename string
	content  string
	start    int // 围栏起始行在原文中的偏移
}

// splitFencedBlocks 提取全部代码围栏块
func splitFencedBlocks(s string) []fencedBlock {
	var blocks []fencedBlock
	idx := 0
	for {
		loc := fenceHeaderRe.FindStringSubmatchIndex(s[idx:])
		if loc == nil {
			break
		}
		headStart := idx + loc[0]
		headEnd := idx + loc[1]
		lang := ""
		if loc[2] >= 0 {
			lang = strings.ToLower(s[idx+loc[2] : idx+loc[3]])
		}
		filename := ""
		if loc[4] >= 0 {
			filename = strings.TrimSpace(s[idx+loc[4] : idx+loc[5]])
		}

		bodyStart := headEnd
		if bodyStart < len(s) && s[bodyStart] == '\n' {
			bodyStart++
		}
		rel := strings.Index(s[bodyStart:], "```")
		if rel < 0 {
			blocks = append(blocks, fencedBlock{lang: lang, filename: filename, content: s[bodyStart:], start: headStart})
			break
		}
		blocks = append(blocks, fencedBlock{lang: lang, filename: filename, content: s[bodyStart : bodyStart+rel], start: headStart})
		idx = bodyStart + rel + 3
	}
	return blocks
}

// headerBefore 在围栏前的几行里找粗体或标题形式的文件路径
func headerBefore(s string, fenceStart int) string {
	before := s[:fenceStart]
	lines := strings.Split(strings.TrimRight(before, "\n"), "\n")
	limit := 3
	for i := len(lines) - 1; i >= 0 && limit > 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		limit--
		if m := boldPathRe.FindStringSubmatch(line); m != nil {
			return m[1]
		}
		if m := markdownPathRe.FindStringSubmatch(line); m != nil {
			return m[1]
		}
	}
	return ""
}

func splitFirstLine(s string) (first, rest string, ok bool) {
	nl := strings.IndexByte(s, '\n')
	if nl < 0 {
		return s, "", s != ""
	}
	return s[:nl], s[nl+1:], true
}

func anonymousName(n int, lang string) string {
	ext, ok := langExtensions[lang]
	if !ok {
		ext = "txt"
	}
	if ext == "dockerfile" {
		return "Dockerfile"
	}
	return fmt.Sprintf("generated_%d.%s", n, ext)
}

// cleanPath 过滤非法路径：绝对路径、上跳引用与空路径一律丢弃
func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "..") {
		return ""
	}
	return p
}
