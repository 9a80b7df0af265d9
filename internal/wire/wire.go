//go:build wireinject
// +build wireinject

package wire

import (
	"github.com/google/wire"

	"codecraft-ai-api/internal/config"
	"codecraft-ai-api/internal/infrastructure/archive"
	"codecraft-ai-api/internal/interfaces/http/handler"
	"codecraft-ai-api/internal/interfaces/http/router"
)

// AppSet 应用全量依赖
var AppSet = wire.NewSet(
	ProvideRedis,
	ProvideChatModelFactory,
	ProvideModelClient,
	archive.NewAssembler,
	ProvideRegistry,
	ProvideEngine,
	handler.NewHealthHandler,
	handler.NewGenerateHandler,
	ProvideProjectHandler,
	router.New,
)

// InitializeApp 初始化整个应用（带路由器）
func InitializeApp(cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(AppSet)
	return nil, nil, nil
}
