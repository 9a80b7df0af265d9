package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"codecraft-ai-api/internal/application/codegen"
	appschema "codecraft-ai-api/internal/application/schema"
	"codecraft-ai-api/internal/domain/entity"
	wfmodel "codecraft-ai-api/internal/workflow/model"
	wfnode "codecraft-ai-api/internal/workflow/node"
	workflowport "codecraft-ai-api/internal/workflow/port"
	workflowprompt "codecraft-ai-api/internal/workflow/prompt"
	apperrors "codecraft-ai-api/pkg/errors"
	"codecraft-ai-api/pkg/logger"
	"codecraft-ai-api/pkg/metrics"
)

// ingestStep 校验并预处理输入载荷
func (e *Engine) ingestStep(ctx context.Context, rs *runState) (*runState, error) {
	ctx, done, err := e.stepGuard(ctx, wfmodel.StepIngestInput)
	if err != nil {
		return nil, err
	}
	defer done()

	rs.emit(ctx, wfmodel.StatusEvent(wfmodel.StepIngestInput, "processing input"))

	in := rs.st.Input
	switch in.Kind {
	case wfmodel.InputKindERDImage:
		if len(in.ImageData) == 0 {
			return nil, apperrors.New(apperrors.CodeIngestionInvalid, "ERD 图片为空")
		}
	case wfmodel.InputKindPrompt:
		if in.Prompt == "" {
			return nil, apperrors.New(apperrors.CodeIngestionInvalid, "描述文本为空")
		}
	case wfmodel.InputKindSchema:
		if in.Schema == nil {
			return nil, apperrors.New(apperrors.CodeIngestionInvalid, "模式输入为空")
		}
	case wfmodel.InputKindFrontendArchive:
		if len(in.ArchiveData) == 0 {
			return nil, apperrors.New(apperrors.CodeIngestionInvalid, "前端压缩包为空")
		}
		code, err := wfnode.ExtractFrontendCode(in.ArchiveData)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeIngestionInvalid, "前端压缩包无法解析")
		}
		rs.frontendCode = code
	default:
		return nil, apperrors.New(apperrors.CodeIngestionInvalid, "未知的输入类型").WithDetail(string(in.Kind))
	}
	return rs, nil
}

// extractStep 从输入中抽取数据库模式；预结构化输入直接采用
func (e *Engine) extractStep(ctx context.Context, rs *runState) (*runState, error) {
	ctx, done, err := e.stepGuard(ctx, wfmodel.StepExtractSchema)
	if err != nil {
		return nil, err
	}
	defer done()

	if rs.st.Input.Kind == wfmodel.InputKindSchema {
		rs.st.Schema = rs.st.Input.Schema
		rs.emit(ctx, wfmodel.StatusEvent(wfmodel.StepExtractSchema, "schema provided, skipping extraction"))
		return rs, nil
	}

	rs.emit(ctx, wfmodel.StatusEvent(wfmodel.StepExtractSchema, "analyzing input with model"))

	req, err := e.buildExtractRequest(ctx, rs)
	if err != nil {
		return nil, err
	}

	var out entity.CanonicalSchema
	if err := e.chatForJSON(ctx, rs, wfmodel.StepExtractSchema, req, &out); err != nil {
		return nil, err
	}
	rs.st.Schema = &out
	rs.st.Schema.Metadata.Source = string(rs.st.Input.Kind)

	rs.emit(ctx, wfmodel.StatusEvent(wfmodel.StepExtractSchema,
		fmt.Sprintf("extracted %d entities", len(out.Entities))))
	return rs, nil
}

// buildExtractRequest 按输入类型选择提示词模板并渲染
func (e *Engine) buildExtractRequest(ctx context.Context, rs *runState) (workflowport.ChatRequest, error) {
	var (
		promptID workflowprompt.PromptID
		vars     map[string]any
	)
	switch rs.st.Input.Kind {
	case wfmodel.InputKindERDImage:
		promptID = workflowprompt.PromptERDExtractV1
		vars = map[string]any{}
	case wfmodel.InputKindPrompt:
		promptID = workflowprompt.PromptTextExtractV1
		vars = map[string]any{"prompt": rs.st.Input.Prompt}
	case wfmodel.InputKindFrontendArchive:
		promptID = workflowprompt.PromptFrontendExtractV1
		vars = map[string]any{"frontend_code": rs.frontendCode}
	default:
		return workflowport.ChatRequest{}, apperrors.New(apperrors.CodeIngestionInvalid, "输入类型不支持抽取")
	}

	tpl, err := e.prompts.ChatTemplate(promptID)
	if err != nil {
		return workflowport.ChatRequest{}, apperrors.Wrap(err, apperrors.CodeInternalError, "加载提示词模板失败")
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil || len(msgs) < 2 {
		return workflowport.ChatRequest{}, apperrors.Wrap(err, apperrors.CodeInternalError, "渲染提示词模板失败")
	}

	return workflowport.ChatRequest{
		Provider:       rs.st.Input.Provider,
		System:         msgs[0].Content,
		User:           msgs[1].Content,
		ImageData:      rs.st.Input.ImageData,
		ImageMIME:      rs.st.Input.ImageMIME,
		JSONSchemaName: "database_schema",
		JSONSchema:     canonicalJSONSchema(),
	}, nil
}

// normalizeStep 规范化模式并识别业务域
func (e *Engine) normalizeStep(ctx context.Context, rs *runState) (*runState, error) {
	ctx, done, err := e.stepGuard(ctx, wfmodel.StepNormalizeSchema)
	if err != nil {
		return nil, err
	}
	defer done()

	normalized, warnings, err := e.normalizer.Normalize(rs.st.Schema)
	if err != nil {
		return nil, err
	}
	rs.st.Schema = normalized
	rs.st.Warnings = append(rs.st.Warnings, warnings...)
	for _, w := range warnings {
		logger.Warn(ctx, "schema normalization", "run_id", rs.st.RunID, "warning", w)
	}

	rs.st.Domain = appschema.ClassifyDomain(normalized)
	rs.st.ProjectName = appschema.ProjectName(normalized, rs.st.Domain)

	rs.emit(ctx, wfmodel.StatusEvent(wfmodel.StepNormalizeSchema, fmt.Sprintf(
		"schema normalized: %d entities, domain %s, project %s",
		len(normalized.Entities), rs.st.Domain, rs.st.ProjectName)))
	return rs, nil
}

// generateStep 生成项目文件：确定性底座 + 逐表模型生成
// 单表失败记录为步骤错误并继续，全部表失败才终止本次运行。
func (e *Engine) generateStep(ctx context.Context, rs *runState) (*runState, error) {
	ctx, done, err := e.stepGuard(ctx, wfmodel.StepGenerateCode)
	if err != nil {
		return nil, err
	}
	defer done()

	st := rs.st

	for _, f := range codegen.BuildScaffold(st.Schema, st.ProjectName) {
		st.AddArtifact(f.Path, f.Content)
		e.emitFile(ctx, rs, f.Path, f.Content)
	}

	schemaJSON, err := json.MarshalIndent(st.Schema, "", "  ")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "序列化模式失败")
	}

	tpl, err := e.prompts.ChatTemplate(workflowprompt.PromptCodegenV1)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "加载提示词模板失败")
	}

	succeeded := 0
	for i := range st.Schema.Entities {
		ent := &st.Schema.Entities[i]
		table := codegen.TableName(ent)

		if err := ctx.Err(); err != nil {
			return nil, apperrors.ErrRunAborted.WithError(err)
		}
		rs.emit(ctx, wfmodel.StatusEvent(wfmodel.StepGenerateCode, fmt.Sprintf("generating module for %s", table)))

		msgs, err := tpl.Format(ctx, map[string]any{
			"project_name": st.ProjectName,
			"domain":       st.Domain,
			"schema_json":  string(schemaJSON),
			"entity_name":  table,
		})
		if err != nil || len(msgs) < 2 {
			return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "渲染提示词模板失败")
		}

		files, err := e.generateModule(ctx, rs, msgs[0].Content, msgs[1].Content)
		if err != nil {
			if aborted := apperrors.AsAppError(err); aborted.Code == apperrors.CodeRunAborted {
				return nil, err
			}
			st.RecordError(wfmodel.StepGenerateCode, string(apperrors.CodePartialGeneration),
				fmt.Sprintf("module %s: %s", table, apperrors.AsAppError(err).Message))
			logger.Warn(ctx, "entity module generation failed", "run_id", st.RunID, "table", table, "error", err.Error())
			continue
		}

		for _, f := range files {
			st.AddArtifact(f.Path, f.Content)
			e.emitFile(ctx, rs, f.Path, f.Content)
		}
		succeeded++
	}

	if succeeded == 0 && len(st.Schema.Entities) > 0 {
		return nil, apperrors.New(apperrors.CodePartialGeneration, "所有表模块生成失败")
	}

	metrics.ArtifactsGenerated.WithLabelValues(string(st.Input.Kind)).Add(float64(len(st.Artifacts)))
	return rs, nil
}

// generateModule 单表文件生成，空结果按可解析失败重试
func (e *Engine) generateModule(ctx context.Context, rs *runState, system, user string) ([]wfnode.ExtractedFile, error) {
	var lastErr error
	for attempt := 0; attempt <= e.cfg.ModelRetries; attempt++ {
		if attempt > 0 {
			metrics.LLMRetriesTotal.WithLabelValues(string(wfmodel.StepGenerateCode)).Inc()
		}

		resp, err := e.client.Chat(ctx, workflowport.ChatRequest{
			Provider: rs.st.Input.Provider,
			System:   system,
			User:     user,
			OnChunk: func(chunk string) {
				rs.emit(ctx, wfmodel.ChunkEvent(wfmodel.StepGenerateCode, chunk))
			},
		})
		if err != nil {
			return nil, err
		}
		rs.st.RawModelOutputs = append(rs.st.RawModelOutputs, resp.Content)

		files := wfnode.ExtractFiles(resp.Content)
		if len(files) > 0 {
			return files, nil
		}
		lastErr = apperrors.ErrMalformedOutput.WithDetail("no files found in model output")
	}
	return nil, lastErr
}

// emitFile 发出文件事件，预览按配置截断
func (e *Engine) emitFile(ctx context.Context, rs *runState, path, content string) {
	limit := e.cfg.PreviewLimit
	if limit <= 0 {
		limit = 1000
	}
	rs.emit(ctx, wfmodel.FileEvent(path, wfnode.TruncateByRunes(content, limit), len(content)))
}

// assembleStep 打包并登记项目
func (e *Engine) assembleStep(ctx context.Context, rs *runState) (*runState, error) {
	ctx, done, err := e.stepGuard(ctx, wfmodel.StepAssemble)
	if err != nil {
		return nil, err
	}
	defer done()

	st := rs.st
	rs.emit(ctx, wfmodel.StatusEvent(wfmodel.StepAssemble, "packaging project"))

	routes := extractedFiles(st.Artifacts)
	apiMap, err := json.MarshalIndent(wfnode.ExtractAPIRoutes(routes), "", "  ")
	if err != nil {
		apiMap = nil
	}

	archiveBytes, err := e.assembler.Assemble(st.ProjectName, st.Artifacts, apiMap)
	if err != nil {
		return nil, err
	}

	st.ProjectID = st.RunID
	st.Archive = archiveBytes

	files := make([]entity.ProjectFile, 0, len(st.Artifacts))
	for _, a := range st.Artifacts {
		files = append(files, entity.ProjectFile{Path: a.Path, Content: a.Content, Size: len(a.Content)})
	}
	e.projects.Put(&entity.GeneratedProject{
		ID:         st.ProjectID,
		Name:       st.ProjectName,
		Domain:     st.Domain,
		FilesCount: len(files),
		Archive:    archiveBytes,
		Files:      files,
	})

	return rs, nil
}

func extractedFiles(artifacts []wfmodel.Artifact) []wfnode.ExtractedFile {
	out := make([]wfnode.ExtractedFile, 0, len(artifacts))
	for _, a := range artifacts {
		out = append(out, wfnode.ExtractedFile{Path: a.Path, Content: a.Content})
	}
	return out
}

// canonicalJSONSchema 模式抽取的结构化输出约束
func canonicalJSONSchema() []byte {
	s := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"entities"},
		"properties": map[string]any{
			"project_name": map[string]any{"type": "string"},
			"entities": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"name", "attributes"},
					"properties": map[string]any{
						"name": map[string]any{"type": "string"},
						"attributes": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type":                 "object",
								"additionalProperties": false,
								"required":             []any{"name"},
								"properties": map[string]any{
									"name":              map[string]any{"type": "string"},
									"data_type":         map[string]any{"type": "string"},
									"is_primary_key":    map[string]any{"type": "boolean"},
									"is_foreign_key":    map[string]any{"type": "boolean"},
									"references_table":  map[string]any{"type": "string"},
									"references_column": map[string]any{"type": "string"},
								},
							},
						},
					},
				},
			},
			"relationships": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": true,
					"properties": map[string]any{
						"from_entity": map[string]any{"type": "string"},
						"to_entity":   map[string]any{"type": "string"},
						"type":        map[string]any{"type": "string"},
						"via_column":  map[string]any{"type": "string"},
					},
				},
			},
		},
	}
	b, _ := json.Marshal(s)
	return b
}
