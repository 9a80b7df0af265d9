// Package schema 实现模式规范化与业务域识别
package schema

import (
	"regexp"
	"strings"

	"codecraft-ai-api/internal/domain/entity"
)

// DomainGeneric 无法识别业务域时的兜底取值
const DomainGeneric = "general"

type domainRule struct {
	name     string
	keywords []string
}

// domainRules 业务域关键词表，顺序即并列得分时的优先级
var domainRules = []domainRule{
	{"ecommerce", []string{"product", "order", "customer", "cart", "payment", "shipping", "inventory"}},
	{"hr", []string{"employee", "department", "salary", "position", "manager", "hr"}},
	{"education", []string{"student", "course", "teacher", "class", "grade", "school", "university"}},
	{"healthcare", []string{"patient", "doctor", "appointment", "medical", "hospital", "clinic"}},
	{"banking", []string{"account", "transaction", "customer", "loan", "card", "bank"}},
	{"real_estate", []string{"property", "house", "apartment", "rent", "lease", "owner"}},
	{"library", []string{"book", "member", "borrow", "return", "author", "publisher"}},
	{"restaurant", []string{"menu", "order", "customer", "table", "reservation", "food"}},
	{"hotel", []string{"room", "guest", "booking", "reservation", "service"}},
	{"transport", []string{"vehicle", "route", "ticket", "passenger", "station", "train", "bus"}},
	{"sales", []string{"sales", "lead", "opportunity", "deal", "client", "prospect"}},
	{"inventory", []string{"product", "stock", "warehouse", "supplier", "item"}},
	{"social", []string{"user", "post", "comment", "friend", "message", "profile"}},
	{"crm", []string{"contact", "lead", "opportunity", "deal", "client", "company"}},
}

// ClassifyDomain 根据实体名识别业务域
// 纯函数：同一模式任意实体顺序都得到同一结果，得分并列时取关键词表中靠前的域，
// 零分时返回 DomainGeneric。
func ClassifyDomain(s *entity.CanonicalSchema) string {
	if s == nil || len(s.Entities) == 0 {
		return DomainGeneric
	}
	names := make([]string, 0, len(s.Entities))
	for _, e := range s.Entities {
		names = append(names, strings.ToLower(e.Name))
	}

	best := DomainGeneric
	bestScore := 0
	for _, rule := range domainRules {
		score := 0
		for _, kw := range rule.keywords {
			for _, name := range names {
				if strings.Contains(name, kw) {
					score++
					break
				}
			}
		}
		if score > bestScore {
			bestScore = score
			best = rule.name
		}
	}
	return best
}

// ProjectName 推导项目名
// 模式自带名称时直接清洗使用；识别出业务域时取 <domain>_management_system；
// 否则退化为首个实体名，最后兜底 database_backend。
func ProjectName(s *entity.CanonicalSchema, domain string) string {
	if s != nil && s.ProjectName != "" {
		return SanitizeName(strings.ReplaceAll(strings.ToLower(s.ProjectName), " ", "_"))
	}
	if domain != DomainGeneric && domain != "" {
		return domain + "_management_system"
	}
	if s != nil && len(s.Entities) > 0 {
		return SanitizeName(strings.ToLower(s.Entities[0].Name) + "_management_system")
	}
	return "database_backend"
}

var invalidNameChars = regexp.MustCompile(`[<>:"/\\|?*\s]`)
var repeatedUnderscore = regexp.MustCompile(`_+`)

// SanitizeName 清洗名称用于文件系统与压缩包命名
func SanitizeName(name string) string {
	name = invalidNameChars.ReplaceAllString(name, "_")
	name = repeatedUnderscore.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if len(name) > 50 {
		name = name[:50]
	}
	if name == "" {
		return "generated_backend"
	}
	return name
}
