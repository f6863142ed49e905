package service

import (
	"context"

	"movieflix/internal/biz"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/google/wire"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(NewEtlService, NewInsightsService)

type phaseKey struct{}

// WithPhase stores a validated phase in ctx.
func WithPhase(ctx context.Context, phase biz.Phase) context.Context {
	return context.WithValue(ctx, phaseKey{}, phase)
}

// PhaseFromContext returns the phase stored by WithPhase.
func PhaseFromContext(ctx context.Context) (biz.Phase, bool) {
	p, ok := ctx.Value(phaseKey{}).(biz.Phase)
	return p, ok
}

// ToHTTPError converts biz errors into Kratos errors carrying the HTTP status.
func ToHTTPError(err error) error {
	if err == nil {
		return nil
	}
	var (
		dse *biz.DataSourceError
		se  *biz.StoreError
	)
	switch {
	case errors.Is(err, biz.ErrInvalidPhase):
		return errors.New(422, "INVALID_PHASE", err.Error())
	case errors.As(err, &dse):
		return errors.BadRequest("DATA_SOURCE_ERROR", dse.Error()).WithCause(err)
	case errors.As(err, &se):
		return errors.InternalServer("STORE_ERROR", se.Error()).WithCause(err)
	default:
		return errors.InternalServer("INTERNAL", err.Error()).WithCause(err)
	}
}
