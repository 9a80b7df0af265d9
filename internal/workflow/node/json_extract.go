// Package node 提供工作流节点共享的纯函数工具
package node

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultRepairAttempts JSON 修复的默认尝试上限
const DefaultRepairAttempts = 3

// MalformedError 模型输出无法解析为 JSON 时返回，保留原始文本供上层重试提示使用
type MalformedError struct {
	Reason string
	Raw    string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed model output: %s", e.Reason)
}

// Extractor 容错 JSON 提取器
// 模型输出可能在 JSON 前后夹杂解释文字、代码围栏，或者因截断缺少收尾括号。
// Extract 对合法 JSON 是幂等的：提取结果再次提取得到同样的字符串。
type Extractor struct {
	repairAttempts int
}

// NewExtractor 创建提取器
// attempts 为修复尝试上限：0 表示不做任何修复，负值表示使用默认上限。
// 超过内置修复手段数量的值只会用尽全部手段。
func NewExtractor(attempts int) *Extractor {
	if attempts < 0 {
		attempts = DefaultRepairAttempts
	}
	return &Extractor{repairAttempts: attempts}
}

// Extract 从模型输出中提取第一个完整 JSON 值（对象或数组）
// 提取失败时按顺序做有限次修复：补齐括号、去掉悬挂逗号、回退残缺 token。
// 全部失败则返回 *MalformedError。
func (x *Extractor) Extract(raw string) (string, error) {
	body := stripFences(strings.TrimSpace(raw))

	start := firstDelim(body)
	if start < 0 {
		return "", &MalformedError{Reason: "no JSON value found", Raw: raw}
	}
	body = body[start:]

	end, stack, inString := scanValue(body)
	candidate := body
	if end >= 0 {
		candidate = body[:end]
	}
	if json.Valid([]byte(candidate)) {
		return candidate, nil
	}

	repairs := []func(string, []byte, bool) string{
		// 1. 补齐未闭合的字符串与括号
		func(s string, st []byte, ins bool) string {
			return closeValue(s, st, ins, false)
		},
		// 2. 先去掉悬挂逗号再补括号
		func(s string, st []byte, ins bool) string {
			return closeValue(s, st, ins, true)
		},
		// 3. 回退到最后一个分隔符，丢弃末尾残缺 token 后再补括号
		func(s string, _ []byte, _ bool) string {
			cut := strings.LastIndexAny(s, ",[{")
			if cut < 0 {
				return s
			}
			truncated := s[:cut]
			if s[cut] == '[' || s[cut] == '{' {
				truncated = s[:cut+1]
			}
			_, st, ins := scanValue(truncated)
			return closeValue(truncated, st, ins, true)
		},
	}
	if len(repairs) > x.repairAttempts {
		repairs = repairs[:x.repairAttempts]
	}

	for _, repair := range repairs {
		fixed := repair(candidate, stack, inString)
		if json.Valid([]byte(fixed)) {
			return fixed, nil
		}
	}

	return "", &MalformedError{Reason: "JSON value could not be repaired", Raw: raw}
}

// ExtractInto 提取并反序列化到 v
func (x *Extractor) ExtractInto(raw string, v any) error {
	s, err := x.Extract(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return &MalformedError{Reason: err.Error(), Raw: raw}
	}
	return nil
}

// stripFences 去掉 Markdown 代码围栏，保留围栏内的内容
func stripFences(s string) string {
	open := strings.Index(s, "```")
	if open < 0 {
		return s
	}
	rest := s[open+3:]
	// 跳过围栏后的语言标记（如 ```json）
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(rest[:nl])
		if firstLine != "" && !strings.ContainsAny(firstLine, "{}[]") {
			rest = rest[nl+1:]
		}
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		return strings.TrimSpace(rest[:end])
	}
	return strings.TrimSpace(rest)
}

// firstDelim 返回第一个 JSON 起始符的位置
func firstDelim(s string) int {
	objStart := strings.IndexByte(s, '{')
	arrStart := strings.IndexByte(s, '[')
	switch {
	case objStart >= 0 && (arrStart < 0 || objStart < arrStart):
		return objStart
	case arrStart >= 0:
		return arrStart
	default:
		return -1
	}
}

// scanValue 按括号配平扫描一个 JSON 值，正确处理字符串与转义
// 返回值完整时 end 为结束位置（半开区间），否则 end 为 -1，
// stack 为尚未闭合的括号栈，inString 表示扫描结束时是否停在字符串内部。
func scanValue(s string) (end int, stack []byte, inString bool) {
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				// 括号不匹配，交给修复逻辑处理
				return -1, stack, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i + 1, nil, false
			}
		}
	}
	return -1, stack, inString
}

// closeValue 闭合残缺的 JSON 值：可选地去掉悬挂逗号，然后按栈补齐括号
func closeValue(s string, stack []byte, inString bool, stripComma bool) string {
	var b strings.Builder
	b.Grow(len(s) + len(stack) + 1)

	body := s
	if inString {
		body += `"`
	}
	if stripComma {
		body = stripDanglingCommas(body)
	}
	b.WriteString(body)
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}

// stripDanglingCommas 去掉闭括号前以及值末尾的悬挂逗号，跳过字符串内部的内容
func stripDanglingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false
	pendingComma := -1 // 待定逗号在 b 中的位置
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
			pendingComma = -1
		case ',':
			pendingComma = b.Len()
		case ' ', '\t', '\r', '\n':
			// 空白不改变待定状态
		case '}', ']':
			if pendingComma >= 0 {
				out := b.String()
				b.Reset()
				b.WriteString(out[:pendingComma] + strings.TrimLeft(out[pendingComma+1:], " \t\r\n"))
			}
			pendingComma = -1
		default:
			pendingComma = -1
		}
		b.WriteByte(c)
	}

	out := b.String()
	if pendingComma >= 0 {
		out = out[:pendingComma] + strings.TrimLeft(out[pendingComma+1:], " \t\r\n")
	}
	return strings.TrimRight(out, " \t\r\n")
}
