// Package handler 提供 HTTP 请求处理器
package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"codecraft-ai-api/internal/config"
	"codecraft-ai-api/internal/domain/entity"
	"codecraft-ai-api/internal/interfaces/http/dto"
	"codecraft-ai-api/internal/workflow/engine"
	wfmodel "codecraft-ai-api/internal/workflow/model"
	"codecraft-ai-api/internal/workflow/stream"
	apperrors "codecraft-ai-api/pkg/errors"
	"codecraft-ai-api/pkg/logger"
)

// GenerateHandler 代码生成处理器
type GenerateHandler struct {
	engine *engine.Engine
	cfg    *config.Config
}

// NewGenerateHandler 创建代码生成处理器
func NewGenerateHandler(eng *engine.Engine, cfg *config.Config) *GenerateHandler {
	return &GenerateHandler{
		engine: eng,
		cfg:    cfg,
	}
}

// GenerateStream 流式生成接口
// @Summary 流式生成后端项目
// @Description 接收 ERD 图片 / 自然语言描述 / 结构化模式 / 前端压缩包，通过 SSE 推送生成进度
// @Tags Generation
// @Accept json,mpfd
// @Produce text/event-stream
// @Success 200 "SSE stream"
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/generate/stream [post]
func (h *GenerateHandler) GenerateStream(c *gin.Context) {
	input, err := h.parseInput(c)
	if err != nil {
		dto.AppError(c, err)
		return
	}

	emitter := stream.NewEmitter(h.cfg.Workflow.StreamBuffer)
	ctx := c.Request.Context()

	go h.engine.Run(ctx, input, emitter)

	// 设置 SSE 响应头
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-emitter.Events():
			if !ok {
				// 终态事件已发送，通道关闭
				return false
			}
			if err := stream.WriteRecord(w, ev); err != nil {
				logger.Warn(ctx, "write sse record failed", "error", err)
				emitter.Abort()
				return false
			}
			return true

		case <-ctx.Done():
			// 客户端断开
			emitter.Abort()
			return false
		}
	})
}

// Generate 阻塞式生成接口
// @Summary 生成后端项目
// @Description 同步执行生成流程，完成后返回项目元数据与下载地址
// @Tags Generation
// @Accept json,mpfd
// @Produce json
// @Success 200 {object} dto.Response[dto.GenerateResult]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/generate [post]
func (h *GenerateHandler) Generate(c *gin.Context) {
	input, err := h.parseInput(c)
	if err != nil {
		dto.AppError(c, err)
		return
	}

	st := h.engine.Run(c.Request.Context(), input, nil)
	result := toGenerateResult(st)

	if st.Status == wfmodel.RunStatusFailed {
		appErr := lastRunError(st)
		c.JSON(appErr.HTTPStatus, dto.ErrorResponse{
			Code:    appErr.HTTPStatus,
			Message: appErr.Message,
			Error: &dto.ErrorDetail{
				ErrorCode: string(appErr.Code),
				Details:   appErr.Detail,
			},
			TraceID: c.GetString("trace_id"),
		})
		return
	}

	dto.Success(c, result)
}

// parseInput 从请求中解析工作流输入
// JSON 请求支持 prompt / schema，multipart 请求支持 erd_image / frontend_archive
func (h *GenerateHandler) parseInput(c *gin.Context) (wfmodel.IngestionInput, error) {
	var req dto.GenerateRequest
	var fileData []byte
	var fileMIME string

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		if err := c.ShouldBind(&req); err != nil {
			return wfmodel.IngestionInput{}, apperrors.Wrap(err, apperrors.CodeInvalidParam, "请求参数无效")
		}
		data, mime, err := h.readUpload(c)
		if err != nil {
			return wfmodel.IngestionInput{}, err
		}
		fileData, fileMIME = data, mime
	} else {
		if err := c.ShouldBindJSON(&req); err != nil {
			return wfmodel.IngestionInput{}, apperrors.Wrap(err, apperrors.CodeInvalidParam, "请求参数无效")
		}
	}

	provider, err := h.resolveProvider(req.Provider)
	if err != nil {
		return wfmodel.IngestionInput{}, err
	}

	input := wfmodel.IngestionInput{
		Kind:     wfmodel.InputKind(req.InputType),
		Provider: provider,
	}

	switch input.Kind {
	case wfmodel.InputKindPrompt:
		if strings.TrimSpace(req.Prompt) == "" {
			return wfmodel.IngestionInput{}, apperrors.New(apperrors.CodeIngestionInvalid, "prompt 输入不能为空")
		}
		input.Prompt = req.Prompt

	case wfmodel.InputKindSchema:
		if len(req.Schema) == 0 {
			return wfmodel.IngestionInput{}, apperrors.New(apperrors.CodeIngestionInvalid, "schema 输入不能为空")
		}
		var schema entity.CanonicalSchema
		if err := json.Unmarshal(req.Schema, &schema); err != nil {
			return wfmodel.IngestionInput{}, apperrors.Wrap(err, apperrors.CodeIngestionInvalid, "schema 不是合法的 JSON")
		}
		input.Schema = &schema

	case wfmodel.InputKindERDImage:
		if len(fileData) == 0 {
			return wfmodel.IngestionInput{}, apperrors.New(apperrors.CodeIngestionInvalid, "erd_image 输入需要在 file 字段上传图片")
		}
		input.ImageData = fileData
		input.ImageMIME = fileMIME

	case wfmodel.InputKindFrontendArchive:
		if len(fileData) == 0 {
			return wfmodel.IngestionInput{}, apperrors.New(apperrors.CodeIngestionInvalid, "frontend_archive 输入需要在 file 字段上传压缩包")
		}
		input.ArchiveData = fileData

	default:
		return wfmodel.IngestionInput{}, apperrors.New(apperrors.CodeIngestionInvalid,
			fmt.Sprintf("不支持的输入类型: %s", req.InputType))
	}

	return input, nil
}

// readUpload 读取 multipart 文件字段并做大小限制
func (h *GenerateHandler) readUpload(c *gin.Context) ([]byte, string, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		// 缺少文件由各输入类型自行校验
		return nil, "", nil
	}

	maxBytes := h.cfg.Workflow.MaxUploadBytes
	if maxBytes > 0 && fh.Size > maxBytes {
		return nil, "", apperrors.New(apperrors.CodeIngestionInvalid,
			fmt.Sprintf("上传文件超过大小限制 %d 字节", maxBytes))
	}

	f, err := fh.Open()
	if err != nil {
		return nil, "", apperrors.Wrap(err, apperrors.CodeIngestionInvalid, "读取上传文件失败")
	}
	defer f.Close()

	var r io.Reader = f
	if maxBytes > 0 {
		r = io.LimitReader(f, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", apperrors.Wrap(err, apperrors.CodeIngestionInvalid, "读取上传文件失败")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, "", apperrors.New(apperrors.CodeIngestionInvalid,
			fmt.Sprintf("上传文件超过大小限制 %d 字节", maxBytes))
	}

	mime := fh.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	return data, mime, nil
}

// resolveProvider 校验请求指定的模型提供商
func (h *GenerateHandler) resolveProvider(provider string) (string, error) {
	p := strings.TrimSpace(provider)
	if p == "" {
		return "", nil
	}
	if len(p) > 32 {
		return "", apperrors.New(apperrors.CodeInvalidParam, "provider 名称过长")
	}
	if _, ok := h.cfg.LLM.Providers[p]; !ok {
		return "", apperrors.New(apperrors.CodeInvalidParam,
			fmt.Sprintf("未配置的模型提供商: %s", p))
	}
	return p, nil
}

// toGenerateResult 将运行状态转换为响应体
func toGenerateResult(st *wfmodel.WorkflowState) dto.GenerateResult {
	result := dto.GenerateResult{
		RunID:       st.RunID,
		ProjectID:   st.ProjectID,
		ProjectName: st.ProjectName,
		Domain:      st.Domain,
		Status:      string(st.Status),
		FilesCount:  len(st.Artifacts),
		Warnings:    st.Warnings,
	}
	if st.ProjectID != "" {
		result.DownloadURL = fmt.Sprintf("/v1/projects/%s/download", st.ProjectID)
	}
	for _, se := range st.Errors {
		result.Errors = append(result.Errors, dto.StepError{
			Step:    string(se.Step),
			Code:    se.Code,
			Message: se.Message,
		})
	}
	return result
}

// lastRunError 取运行失败时的最后一条步骤错误
func lastRunError(st *wfmodel.WorkflowState) *apperrors.AppError {
	if len(st.Errors) == 0 {
		return apperrors.ErrInternalError
	}
	last := st.Errors[len(st.Errors)-1]
	return apperrors.New(apperrors.ErrorCode(last.Code), last.Message)
}
