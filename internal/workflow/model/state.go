// Package model 定义工作流的输入输出与运行状态
package model

import (
	"time"

	"codecraft-ai-api/internal/domain/entity"
)

// InputKind 输入载荷类型
type InputKind string

const (
	InputKindERDImage        InputKind = "erd_image"
	InputKindPrompt          InputKind = "prompt"
	InputKindSchema          InputKind = "schema"
	InputKindFrontendArchive InputKind = "frontend_archive"
)

// IngestionInput 工作流输入载荷（根据 Kind 只填其一）
type IngestionInput struct {
	Kind InputKind

	// Provider 指定本次运行使用的模型提供商，留空用默认
	Provider string

	// Kind == InputKindERDImage
	ImageData []byte
	ImageMIME string

	// Kind == InputKindPrompt
	Prompt string

	// Kind == InputKindSchema，预结构化输入跳过抽取阶段
	Schema *entity.CanonicalSchema

	// Kind == InputKindFrontendArchive
	ArchiveData []byte
}

// RunStatus 运行状态
type RunStatus string

const (
	RunStatusPending        RunStatus = "pending"
	RunStatusRunning        RunStatus = "running"
	RunStatusSuccess        RunStatus = "success"
	RunStatusPartialSuccess RunStatus = "partial_success"
	RunStatusFailed         RunStatus = "failed"
)

// Terminal 该状态是否为终态
func (s RunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusPartialSuccess || s == RunStatusFailed
}

// StepName 工作流步骤名
type StepName string

const (
	StepIngestInput     StepName = "ingest_input"
	StepExtractSchema   StepName = "extract_schema"
	StepNormalizeSchema StepName = "normalize_schema"
	StepGenerateCode    StepName = "generate_code"
	StepAssemble        StepName = "assemble"
)

// StepError 步骤级错误记录
type StepError struct {
	Step    StepName  `json:"step"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Artifact 生成的单个文件产物
type Artifact struct {
	Path    string
	Content string
}

// WorkflowState 一次生成运行的完整状态
// 由引擎按步骤推进，步骤失败记录到 Errors 并视情况继续
type WorkflowState struct {
	RunID string
	Input IngestionInput

	// RawModelOutputs 每次模型调用的原始文本，按发生顺序追加
	RawModelOutputs []string

	Schema *entity.CanonicalSchema

	// Warnings 规范化阶段修复或丢弃内容时的提示
	Warnings []string

	Domain      string
	ProjectName string

	// Artifacts 生成的文件，保持生成顺序
	Artifacts []Artifact

	ProjectID string
	Archive   []byte

	Status RunStatus
	Errors []StepError

	StartedAt  time.Time
	FinishedAt time.Time
}

// NewWorkflowState 创建初始运行状态
func NewWorkflowState(runID string, input IngestionInput) *WorkflowState {
	return &WorkflowState{
		RunID:     runID,
		Input:     input,
		Status:    RunStatusPending,
		StartedAt: time.Now(),
	}
}

// RecordError 追加一条步骤错误
func (s *WorkflowState) RecordError(step StepName, code, message string) {
	s.Errors = append(s.Errors, StepError{
		Step:    step,
		Code:    code,
		Message: message,
		At:      time.Now(),
	})
}

// AddArtifact 追加生成文件，重复路径以后者为准但保留原位置
func (s *WorkflowState) AddArtifact(path, content string) {
	for i := range s.Artifacts {
		if s.Artifacts[i].Path == path {
			s.Artifacts[i].Content = content
			return
		}
	}
	s.Artifacts = append(s.Artifacts, Artifact{Path: path, Content: content})
}
