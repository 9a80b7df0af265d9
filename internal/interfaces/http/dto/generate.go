package dto

import (
	"encoding/json"
	"time"
)

// GenerateRequest 生成请求
// JSON 调用时 input_type 为 prompt 或 schema；
// multipart 调用时 erd_image / frontend_archive 的文件放在 file 字段。
type GenerateRequest struct {
	InputType string          `json:"input_type" form:"input_type" binding:"required"`
	Prompt    string          `json:"prompt" form:"prompt"`
	Schema    json.RawMessage `json:"schema"`
	Provider  string          `json:"provider" form:"provider"`
}

// GenerateResult 阻塞式生成的响应体
type GenerateResult struct {
	RunID       string      `json:"run_id"`
	ProjectID   string      `json:"project_id,omitempty"`
	ProjectName string      `json:"project_name,omitempty"`
	Domain      string      `json:"domain,omitempty"`
	Status      string      `json:"status"`
	FilesCount  int         `json:"files_count"`
	DownloadURL string      `json:"download_url,omitempty"`
	Warnings    []string    `json:"warnings,omitempty"`
	Errors      []StepError `json:"errors,omitempty"`
}

// StepError 步骤错误
type StepError struct {
	Step    string `json:"step"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ProjectPreview 项目预览响应
type ProjectPreview struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Domain     string        `json:"domain"`
	FilesCount int           `json:"files_count"`
	CreatedAt  time.Time     `json:"created_at"`
	ExpiresAt  time.Time     `json:"expires_at"`
	Files      []FilePreview `json:"files"`
}

// FilePreview 单个文件预览
type FilePreview struct {
	Path    string `json:"path"`
	Size    int    `json:"size"`
	Preview string `json:"preview"`
}
