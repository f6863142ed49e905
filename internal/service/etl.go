package service

import (
	"context"
	"net/http"

	"movieflix/internal/biz"

	"github.com/go-kratos/kratos/v2/errors"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// EtlService exposes the datalake pipeline over HTTP
type EtlService struct {
	pipeline *biz.PipelineUseCase
}

// NewEtlService creates a new EtlService
func NewEtlService(pipeline *biz.PipelineUseCase) *EtlService {
	return &EtlService{pipeline: pipeline}
}

// Ingest implements POST /api/datalake/ingest?phase=
func (s *EtlService) Ingest(ctx khttp.Context) error {
	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		phase, err := requestPhase(c, ctx)
		if err != nil {
			return nil, err
		}
		res, err := s.pipeline.Ingest(c, phase)
		if err != nil {
			return nil, ToHTTPError(err)
		}
		return &IngestReply{
			Phase:  res.Phase.String(),
			Status: StatusStaged,
			Rows:   rowsToReply(res.Rows),
		}, nil
	})
	out, err := h(ctx, ctx.Request())
	if err != nil {
		return err
	}
	return ctx.Result(http.StatusOK, out)
}

// Pipeline implements POST /api/datalake/pipeline?phase=
func (s *EtlService) Pipeline(ctx khttp.Context) error {
	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		phase, err := requestPhase(c, ctx)
		if err != nil {
			return nil, err
		}
		res, err := s.pipeline.Run(c, phase)
		if err != nil {
			return nil, ToHTTPError(err)
		}
		return &PipelineReply{
			RunID:  res.RunID,
			Phase:  res.Phase.String(),
			Status: StatusPipeline,
			Export: exportToReply(res.Export),
		}, nil
	})
	out, err := h(ctx, ctx.Request())
	if err != nil {
		return err
	}
	return ctx.Result(http.StatusOK, out)
}

// Export implements GET /api/export
func (s *EtlService) Export(ctx khttp.Context) error {
	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		summary, err := s.pipeline.Export(c)
		if err != nil {
			return nil, ToHTTPError(err)
		}
		return &ExportReply{Status: StatusExported, Export: exportToReply(summary)}, nil
	})
	out, err := h(ctx, ctx.Request())
	if err != nil {
		return err
	}
	return ctx.Result(http.StatusOK, out)
}

// requestPhase prefers the phase validated by the server middleware and
// falls back to parsing the query string.
func requestPhase(c context.Context, ctx khttp.Context) (biz.Phase, error) {
	if phase, ok := PhaseFromContext(c); ok {
		return phase, nil
	}
	phase, err := biz.ParsePhase(ctx.Query().Get("phase"))
	if err != nil {
		return "", errors.New(422, "INVALID_PHASE", err.Error())
	}
	return phase, nil
}
