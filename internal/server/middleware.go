package server

import (
	"context"

	"movieflix/internal/biz"
	"movieflix/internal/service"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// Operations that take a ?phase= query parameter.
const (
	OperationIngest   = "/api/datalake/ingest"
	OperationPipeline = "/api/datalake/pipeline"
)

// PhaseMiddleware validates the phase query parameter of the datalake
// operations and injects the parsed phase into the context.
func PhaseMiddleware() middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			tr, ok := transport.FromServerContext(ctx)
			if !ok {
				return handler(ctx, req)
			}

			switch tr.Operation() {
			case OperationIngest, OperationPipeline:
			default:
				return handler(ctx, req)
			}

			ht, ok := tr.(khttp.Transporter)
			if !ok {
				return handler(ctx, req)
			}
			phase, err := biz.ParsePhase(ht.Request().URL.Query().Get("phase"))
			if err != nil {
				return nil, errors.New(422, "INVALID_PHASE", err.Error())
			}
			return handler(service.WithPhase(ctx, phase), req)
		}
	}
}
