// Package wire 提供依赖注入配置
package wire

import (
	"codecraft-ai-api/internal/config"
	"codecraft-ai-api/internal/infrastructure/archive"
	"codecraft-ai-api/internal/infrastructure/llm"
	"codecraft-ai-api/internal/infrastructure/persistence/redis"
	"codecraft-ai-api/internal/interfaces/http/handler"
	workflowengine "codecraft-ai-api/internal/workflow/engine"
	workflowport "codecraft-ai-api/internal/workflow/port"
)

// ProvideRedis 创建 Redis 客户端
// 限流未启用时返回 nil，服务在无 Redis 的环境下仍可运行
func ProvideRedis(cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Security.RateLimit.Enabled {
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideChatModelFactory 创建模型工厂
func ProvideChatModelFactory(cfg *config.Config) workflowport.ChatModelFactory {
	return llm.NewEinoFactory(cfg)
}

// ProvideModelClient 创建模型调用客户端
func ProvideModelClient(factory workflowport.ChatModelFactory, cfg *config.Config) workflowport.ModelClient {
	return llm.NewClient(factory, cfg)
}

// ProvideRegistry 创建项目产物仓库
func ProvideRegistry(cfg *config.Config) (*archive.Registry, func()) {
	registry := archive.NewRegistry(cfg.Archive.TTL, cfg.Archive.EvictionInterval, cfg.Archive.MaxProjects)
	return registry, registry.Close
}

// ProvideEngine 创建生成工作流引擎
func ProvideEngine(client workflowport.ModelClient, assembler *archive.Assembler, registry *archive.Registry, cfg *config.Config) *workflowengine.Engine {
	return workflowengine.New(client, assembler, registry, cfg.Workflow)
}

// ProvideProjectHandler 创建项目查询处理器
func ProvideProjectHandler(registry *archive.Registry, cfg *config.Config) *handler.ProjectHandler {
	return handler.NewProjectHandler(registry, cfg.Workflow.PreviewLimit)
}
