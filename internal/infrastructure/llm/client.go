package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"codecraft-ai-api/internal/config"
	wfnode "codecraft-ai-api/internal/workflow/node"
	workflowport "codecraft-ai-api/internal/workflow/port"
	apperrors "codecraft-ai-api/pkg/errors"
	"codecraft-ai-api/pkg/logger"
	"codecraft-ai-api/pkg/metrics"
)

// Client 基于 Eino 的 ModelClient 实现
// 负责提供商选择、多模态消息组装、json_schema 降级与用量上报。
type Client struct {
	factory workflowport.ChatModelFactory
	cfg     *config.LLMConfig
}

var _ workflowport.ModelClient = (*Client)(nil)

// NewClient 创建模型客户端
func NewClient(factory workflowport.ChatModelFactory, cfg *config.Config) *Client {
	return &Client{
		factory: factory,
		cfg:     &cfg.LLM,
	}
}

// Chat 执行一次模型调用
func (c *Client) Chat(ctx context.Context, req workflowport.ChatRequest) (*workflowport.ChatResponse, error) {
	provider := c.pickProvider(req)

	chatModel, err := c.factory.Get(ctx, provider)
	if err != nil {
		return nil, err
	}

	msgs := buildMessages(req)
	modelName := c.modelName(provider)

	start := time.Now()
	out, err := c.invoke(ctx, chatModel, msgs, req, provider, modelName)
	elapsed := time.Since(start)
	metrics.LLMCallDuration.WithLabelValues(provider, modelName).Observe(elapsed.Seconds())

	if err != nil {
		metrics.LLMCallTotal.WithLabelValues(provider, modelName, "error").Inc()
		return nil, mapModelError(err, provider)
	}
	metrics.LLMCallTotal.WithLabelValues(provider, modelName, "ok").Inc()

	resp := &workflowport.ChatResponse{
		Content:  out.Content,
		Provider: provider,
		Model:    modelName,
	}
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		resp.PromptTokens = out.ResponseMeta.Usage.PromptTokens
		resp.CompletionTokens = out.ResponseMeta.Usage.CompletionTokens
		metrics.LLMTokensUsed.WithLabelValues(provider, modelName, "prompt").Add(float64(resp.PromptTokens))
		metrics.LLMTokensUsed.WithLabelValues(provider, modelName, "completion").Add(float64(resp.CompletionTokens))
	}
	return resp, nil
}

// invoke 执行调用，json_schema 不被支持时降级为仅提示词约束重试一次
func (c *Client) invoke(ctx context.Context, chatModel model.BaseChatModel, msgs []*schema.Message,
	req workflowport.ChatRequest, provider, modelName string) (*schema.Message, error) {

	out, err := c.call(ctx, chatModel, msgs, req, buildOptions(req, true))
	if err != nil && len(req.JSONSchema) > 0 && wfnode.IsResponseFormatUnsupportedError(err) {
		logger.Warn(ctx, "llm json_schema not supported, fallback to prompt-only",
			"provider", provider,
			"model", modelName,
			"error", err.Error(),
		)
		out, err = c.call(ctx, chatModel, msgs, req, buildOptions(req, false))
	}
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, apperrors.New(apperrors.CodeTransport, "模型返回为空")
	}
	return out, nil
}

// call 单次调用；设置了 OnChunk 时走流式接口并逐段回调
func (c *Client) call(ctx context.Context, chatModel model.BaseChatModel, msgs []*schema.Message,
	req workflowport.ChatRequest, opts []model.Option) (*schema.Message, error) {

	if req.OnChunk == nil {
		return chatModel.Generate(ctx, msgs, opts...)
	}

	reader, err := chatModel.Stream(ctx, msgs, opts...)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var chunks []*schema.Message
	for {
		chunk, err := reader.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		if chunk.Content != "" {
			req.OnChunk(chunk.Content)
		}
		chunks = append(chunks, chunk)
	}
	return schema.ConcatMessages(chunks)
}

// pickProvider 未显式指定时，图片输入优先用视觉提供商
func (c *Client) pickProvider(req workflowport.ChatRequest) string {
	if req.Provider != "" {
		return req.Provider
	}
	if len(req.ImageData) > 0 && c.cfg.VisionProvider != "" {
		return c.cfg.VisionProvider
	}
	return c.cfg.DefaultProvider
}

func (c *Client) modelName(provider string) string {
	if p, ok := c.cfg.Providers[provider]; ok {
		return p.Model
	}
	return ""
}

// buildMessages 组装消息，图片输入转为多模态 user 消息
func buildMessages(req workflowport.ChatRequest) []*schema.Message {
	msgs := make([]*schema.Message, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		msgs = append(msgs, schema.SystemMessage(req.System))
	}

	if len(req.ImageData) == 0 {
		msgs = append(msgs, schema.UserMessage(req.User))
		return msgs
	}

	mime := req.ImageMIME
	if mime == "" {
		mime = "image/png"
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(req.ImageData)
	msgs = append(msgs, &schema.Message{
		Role: schema.User,
		MultiContent: []schema.ChatMessagePart{
			{Type: schema.ChatMessagePartTypeText, Text: req.User},
			{
				Type: schema.ChatMessagePartTypeImageURL,
				ImageURL: &schema.ChatMessageImageURL{
					URL:    dataURL,
					Detail: schema.ImageURLDetailAuto,
				},
			},
		},
	})
	return msgs
}

// buildOptions 组装模型选项，enableSchema 时附加 json_schema 响应约束
func buildOptions(req workflowport.ChatRequest, enableSchema bool) []model.Option {
	var opts []model.Option
	if !enableSchema || len(req.JSONSchema) == 0 {
		return opts
	}

	var schemaBody map[string]any
	if err := json.Unmarshal(req.JSONSchema, &schemaBody); err != nil {
		return opts
	}
	name := req.JSONSchemaName
	if name == "" {
		name = "response"
	}
	opts = append(opts, openaiopts.WithExtraFields(map[string]any{
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   name,
				"strict": false,
				"schema": schemaBody,
			},
		},
	}))
	return opts
}

// mapModelError 把底层调用错误映射到统一错误码
func mapModelError(err error, provider string) error {
	if apperrors.IsAppError(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.ErrModelTimeout.WithError(err)
	}
	if errors.Is(err, context.Canceled) {
		return apperrors.ErrRunAborted.WithError(err)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline") {
		return apperrors.ErrModelTimeout.WithError(err)
	}
	if strings.Contains(msg, "api key") || strings.Contains(msg, "unauthorized") || strings.Contains(msg, "401") {
		return apperrors.ErrMissingCredential.WithError(err).WithDetail(provider)
	}
	return apperrors.Wrap(err, apperrors.CodeTransport, "模型调用失败").WithDetail(provider)
}
