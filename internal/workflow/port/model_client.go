package port

import (
	"context"
)

// ChatRequest 工作流层对一次模型调用的描述
type ChatRequest struct {
	// Provider 为空时使用默认提供商
	Provider string

	System string
	User   string

	// ImageData 非空时以多模态消息发送（ERD 图片分析）
	ImageData []byte
	ImageMIME string

	// JSONSchema 非空时请求结构化输出，不支持的提供商自动降级为提示词约束
	JSONSchemaName string
	JSONSchema     []byte

	// OnChunk 流式回调，逐段收到模型输出时触发；为 nil 时整体返回
	OnChunk func(chunk string)
}

// ChatResponse 模型调用结果
type ChatResponse struct {
	Content          string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// ModelClient 定义工作流层对 LLM 调用的最小依赖（port）。
// 实现负责提供商选择、超时与用量上报；重试由引擎控制。
type ModelClient interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}
