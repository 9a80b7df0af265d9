package node

import (
	"regexp"
	"strings"
)

// APIRoute Express 风格路由定义
type APIRoute struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// routeRe 匹配 router.get('/users') / app.post("/users") 等注册语句
var routeRe = regexp.MustCompile(`(?:router|app)\.(get|post|put|delete|patch)\(\s*['"` + "`" + `]([^'"` + "`" + `]+)['"` + "`" + `]`)

// ExtractAPIRoutes 从生成的路由代码中提取 API 清单，按出现顺序去重
func ExtractAPIRoutes(files []ExtractedFile) []APIRoute {
	var routes []APIRoute
	seen := map[string]struct{}{}
	for _, f := range files {
		if !isRouteSource(f.Path) {
			continue
		}
		for _, m := range routeRe.FindAllStringSubmatch(f.Content, -1) {
			method := strings.ToUpper(m[1])
			path := m[2]
			key := method + " " + path
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			routes = append(routes, APIRoute{Method: method, Path: path})
		}
	}
	return routes
}

// isRouteSource 只在 JS/TS 源文件里找路由注册
func isRouteSource(path string) bool {
	return strings.HasSuffix(path, ".js") || strings.HasSuffix(path, ".ts") ||
		strings.HasSuffix(path, ".mjs") || strings.HasSuffix(path, ".cjs")
}
