//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"movieflix/internal/biz"
	"movieflix/internal/conf"
	"movieflix/internal/data"
	"movieflix/internal/server"
	"movieflix/internal/service"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp init kratos application.
func wireApp(*conf.Server, *conf.Data, *conf.Lake, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(server.ProviderSet, data.ProviderSet, biz.ProviderSet, service.ProviderSet, newApp))
}

// wirePipeline init the pipeline use case for the CLI commands.
func wirePipeline(*conf.Data, *conf.Lake, log.Logger) (*biz.PipelineUseCase, func(), error) {
	panic(wire.Build(data.ProviderSet, biz.ProviderSet))
}
