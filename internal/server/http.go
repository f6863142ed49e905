package server

import (
	"net/http"

	"movieflix/internal/conf"
	"movieflix/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/middleware/tracing"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/gorilla/handlers"
)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c *conf.Server, etl *service.EtlService, insights *service.InsightsService, logger log.Logger) *khttp.Server {
	var opts = []khttp.ServerOption{
		khttp.Middleware(
			recovery.Recovery(),
			tracing.Server(),
			logging.Server(logger),
			PhaseMiddleware(),
		),
		khttp.Filter(handlers.CORS(
			handlers.AllowedOrigins([]string{"*"}),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Accept", "Authorization", "Content-Type", "Origin", "X-Requested-With"}),
		)),
	}
	if c != nil && c.Http != nil {
		if c.Http.Network != "" {
			opts = append(opts, khttp.Network(c.Http.Network))
		}
		if c.Http.Addr != "" {
			opts = append(opts, khttp.Address(c.Http.Addr))
		}
		if c.Http.Timeout != nil {
			opts = append(opts, khttp.Timeout(c.Http.Timeout.AsDuration()))
		}
	}
	srv := khttp.NewServer(opts...)
	RegisterRoutes(srv, etl, insights)
	return srv
}

// RegisterRoutes binds the JSON API to srv.
func RegisterRoutes(srv *khttp.Server, etl *service.EtlService, insights *service.InsightsService) {
	r := srv.Route("/")
	r.GET("/api/health", insights.Health)
	r.POST(OperationIngest, etl.Ingest)
	r.POST(OperationPipeline, etl.Pipeline)
	r.GET("/api/export", etl.Export)
	r.GET("/api/insights/top10-by-genre", insights.TopByGenre)
	r.GET("/api/insights/avg-by-age", insights.AvgByAge)
	r.GET("/api/insights/by-country", insights.ByCountry)
	r.GET("/api/quality/metrics", insights.QualityMetrics)
}
