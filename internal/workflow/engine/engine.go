// Package engine 实现代码生成工作流的编排
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	appschema "codecraft-ai-api/internal/application/schema"
	"codecraft-ai-api/internal/config"
	"codecraft-ai-api/internal/infrastructure/archive"
	wfmodel "codecraft-ai-api/internal/workflow/model"
	workflowport "codecraft-ai-api/internal/workflow/port"
	workflowprompt "codecraft-ai-api/internal/workflow/prompt"
	"codecraft-ai-api/internal/workflow/stream"
	apperrors "codecraft-ai-api/pkg/errors"
	"codecraft-ai-api/pkg/logger"
	"codecraft-ai-api/pkg/metrics"
)

// Engine 生成工作流引擎
// 步骤固定为 ingest -> extract -> normalize -> generate -> assemble；
// 预结构化模式输入跳过抽取；单表生成失败记录后继续，全部失败才终止。
type Engine struct {
	client     workflowport.ModelClient
	prompts    *workflowprompt.Registry
	normalizer *appschema.Normalizer
	assembler  *archive.Assembler
	projects   *archive.Registry
	cfg        config.WorkflowConfig
	sem        *semaphore.Weighted

	chainOnce sync.Once
	chain     compose.Runnable[*runState, *runState]
	chainErr  error
}

// New 创建引擎
func New(client workflowport.ModelClient, assembler *archive.Assembler, projects *archive.Registry, cfg config.WorkflowConfig) *Engine {
	e := &Engine{
		client:     client,
		prompts:    workflowprompt.NewRegistry(),
		normalizer: appschema.NewNormalizer(),
		assembler:  assembler,
		projects:   projects,
		cfg:        cfg,
	}
	if cfg.MaxConcurrentRuns > 0 {
		e.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrentRuns))
	}
	return e
}

// runState 链路节点间传递的运行期状态
type runState struct {
	st           *wfmodel.WorkflowState
	emitter      *stream.Emitter
	frontendCode string
}

// emit 投递事件，未挂接发射器（阻塞式调用）时为空操作
func (rs *runState) emit(ctx context.Context, ev wfmodel.StreamEvent) {
	if rs.emitter != nil {
		rs.emitter.Emit(ctx, ev)
	}
}

// Run 执行一次生成，事件写入 emitter（可为 nil），返回终态的运行状态
// 恰好发出一条终态事件：成功/部分成功为 complete，否则为 error。
func (e *Engine) Run(ctx context.Context, input wfmodel.IngestionInput, emitter *stream.Emitter) *wfmodel.WorkflowState {
	st := wfmodel.NewWorkflowState(uuid.NewString(), input)
	st.Status = wfmodel.RunStatusRunning

	rsInit := &runState{st: st, emitter: emitter}
	if e.sem != nil {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			e.finish(ctx, rsInit, apperrors.ErrRunAborted.WithError(err))
			return st
		}
		defer e.sem.Release(1)
	}

	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()

	rs := rsInit

	chain, err := e.getChain()
	if err != nil {
		e.finish(ctx, rs, apperrors.Wrap(err, apperrors.CodeInternalError, "工作流初始化失败"))
		return st
	}

	_, runErr := chain.Invoke(ctx, rs)
	e.finish(ctx, rs, runErr)
	return st
}

// finish 收敛终态：置状态、记指标并发出唯一的终态事件
func (e *Engine) finish(ctx context.Context, rs *runState, runErr error) {
	st := rs.st
	st.FinishedAt = time.Now()

	if runErr != nil {
		appErr := asRunError(ctx, runErr)
		st.Status = wfmodel.RunStatusFailed
		if len(st.Errors) == 0 || st.Errors[len(st.Errors)-1].Code != string(appErr.Code) {
			st.RecordError(currentStep(st), string(appErr.Code), appErr.Message)
		}
		logger.Error(ctx, "generation run failed", appErr, "run_id", st.RunID, "step", string(currentStep(st)))
		rs.emit(ctx, wfmodel.ErrorEvent(string(appErr.Code), appErr.Message, appErr.Detail))
	} else {
		if len(st.Errors) > 0 {
			st.Status = wfmodel.RunStatusPartialSuccess
		} else {
			st.Status = wfmodel.RunStatusSuccess
		}
		logger.Info(ctx, "generation run finished",
			"run_id", st.RunID,
			"status", string(st.Status),
			"project_id", st.ProjectID,
			"files", len(st.Artifacts),
		)
		var failed []string
		for _, se := range st.Errors {
			failed = append(failed, se.Message)
		}
		rs.emit(ctx, wfmodel.CompleteEvent(
			st.ProjectID,
			len(st.Artifacts),
			fmt.Sprintf("/v1/projects/%s/download", st.ProjectID),
			string(st.Status),
			fmt.Sprintf("project %s generated with %d files", st.ProjectName, len(st.Artifacts)),
			failed,
		))
	}

	metrics.WorkflowRunsTotal.WithLabelValues(string(st.Input.Kind), string(st.Status)).Inc()
}

// currentStep 依据已完成的内容推断失败发生的阶段
func currentStep(st *wfmodel.WorkflowState) wfmodel.StepName {
	switch {
	case st.Schema == nil:
		return wfmodel.StepExtractSchema
	case st.ProjectName == "":
		return wfmodel.StepNormalizeSchema
	case len(st.Artifacts) == 0:
		return wfmodel.StepGenerateCode
	default:
		return wfmodel.StepAssemble
	}
}

// asRunError 统一运行错误：取消归为 RunAborted，步骤超时归为 ModelTimeout
func asRunError(ctx context.Context, err error) *apperrors.AppError {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return apperrors.ErrRunAborted.WithError(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.ErrModelTimeout.WithError(err)
	}
	return apperrors.AsAppError(err)
}

func (e *Engine) getChain() (compose.Runnable[*runState, *runState], error) {
	e.chainOnce.Do(func() {
		e.chain, e.chainErr = e.buildChain(context.Background())
	})
	return e.chain, e.chainErr
}

func (e *Engine) buildChain(ctx context.Context) (compose.Runnable[*runState, *runState], error) {
	chain := compose.NewChain[*runState, *runState]()

	chain.AppendLambda(compose.InvokableLambda(e.ingestStep), compose.WithNodeName("codegen.ingest"))
	chain.AppendLambda(compose.InvokableLambda(e.extractStep), compose.WithNodeName("codegen.extract"))
	chain.AppendLambda(compose.InvokableLambda(e.normalizeStep), compose.WithNodeName("codegen.normalize"))
	chain.AppendLambda(compose.InvokableLambda(e.generateStep), compose.WithNodeName("codegen.generate"))
	chain.AppendLambda(compose.InvokableLambda(e.assembleStep), compose.WithNodeName("codegen.assemble"))

	return chain.Compile(ctx)
}

// stepGuard 每步入口的公共处理：取消检查、按配置加步骤超时、耗时统计
func (e *Engine) stepGuard(ctx context.Context, step wfmodel.StepName) (context.Context, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, apperrors.ErrRunAborted.WithError(err)
	}
	cancel := func() {}
	if e.cfg.StepTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, e.cfg.StepTimeout)
	}
	start := time.Now()
	return ctx, func() {
		cancel()
		metrics.WorkflowStepDuration.WithLabelValues(string(step)).Observe(time.Since(start).Seconds())
	}, nil
}
