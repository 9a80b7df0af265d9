package engine

import (
	"context"
	"errors"

	wfmodel "codecraft-ai-api/internal/workflow/model"
	wfnode "codecraft-ai-api/internal/workflow/node"
	workflowport "codecraft-ai-api/internal/workflow/port"
	workflowprompt "codecraft-ai-api/internal/workflow/prompt"
	apperrors "codecraft-ai-api/pkg/errors"
	"codecraft-ai-api/pkg/logger"
	"codecraft-ai-api/pkg/metrics"
)

// repairRawLimit 修复提示词中携带的原始输出上限（按 rune）
const repairRawLimit = 6000

// chatForJSON 调用模型并把输出解析为 out 指向的结构
// 解析失败时带着上一次的原始输出与解析错误重新提问，最多追加 cfg.ModelRetries 次；
// 每次调用的原始输出都追加到运行状态。传输与配置错误不重试。
func (e *Engine) chatForJSON(ctx context.Context, rs *runState, step wfmodel.StepName,
	req workflowport.ChatRequest, out any) error {

	extractor := wfnode.NewExtractor(e.cfg.JSONRepairAttempts)

	var lastRaw, lastReason string
	var lastErr error
	for attempt := 0; attempt <= e.cfg.ModelRetries; attempt++ {
		call := req
		if attempt > 0 {
			metrics.LLMRetriesTotal.WithLabelValues(string(step)).Inc()
			rs.emit(ctx, wfmodel.StatusEvent(step, "model output unparsable, retrying"))

			repaired, err := e.buildRepairRequest(ctx, req, lastRaw, lastReason)
			if err != nil {
				return err
			}
			call = repaired
		}

		resp, err := e.client.Chat(ctx, call)
		if err != nil {
			return err
		}
		rs.st.RawModelOutputs = append(rs.st.RawModelOutputs, resp.Content)

		if err := extractor.ExtractInto(resp.Content, out); err != nil {
			metrics.JSONRepairsTotal.WithLabelValues("failed").Inc()
			lastErr = err
			var mal *wfnode.MalformedError
			if errors.As(err, &mal) {
				lastRaw = wfnode.TruncateByRunes(mal.Raw, repairRawLimit)
				lastReason = mal.Reason
			} else {
				lastRaw = wfnode.TruncateByRunes(resp.Content, repairRawLimit)
				lastReason = err.Error()
			}
			logger.Warn(ctx, "model output extraction failed",
				"run_id", rs.st.RunID,
				"step", string(step),
				"attempt", attempt,
				"reason", lastReason,
			)
			continue
		}

		metrics.JSONRepairsTotal.WithLabelValues("ok").Inc()
		return nil
	}

	return apperrors.ErrMalformedOutput.WithError(lastErr).WithDetail(lastReason)
}

// buildRepairRequest 构造修复提示词请求，沿用原请求的结构化输出约束
func (e *Engine) buildRepairRequest(ctx context.Context, req workflowport.ChatRequest,
	raw, reason string) (workflowport.ChatRequest, error) {

	tpl, err := e.prompts.ChatTemplate(workflowprompt.PromptRepairV1)
	if err != nil {
		return workflowport.ChatRequest{}, apperrors.Wrap(err, apperrors.CodeInternalError, "加载修复提示词失败")
	}
	msgs, err := tpl.Format(ctx, map[string]any{
		"raw_output":  raw,
		"parse_error": reason,
	})
	if err != nil || len(msgs) < 2 {
		return workflowport.ChatRequest{}, apperrors.Wrap(err, apperrors.CodeInternalError, "渲染修复提示词失败")
	}

	return workflowport.ChatRequest{
		Provider:       req.Provider,
		System:         msgs[0].Content,
		User:           msgs[1].Content,
		JSONSchemaName: req.JSONSchemaName,
		JSONSchema:     req.JSONSchema,
	}, nil
}
