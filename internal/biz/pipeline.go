package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PipelineUseCase sequences ingest, conform, warehouse load, mart build and export.
type PipelineUseCase struct {
	lake      LakeReader
	staging   StagingRepo
	warehouse WarehouseRepo
	marts     MartRepo
	snapshots SnapshotRepo
	exporter  ExportWriter
	tm        Transaction
	locker    RunLocker
	tracer    trace.Tracer
	log       *log.Helper
}

// NewPipelineUseCase creates a new PipelineUseCase instance
func NewPipelineUseCase(
	lake LakeReader,
	staging StagingRepo,
	warehouse WarehouseRepo,
	marts MartRepo,
	snapshots SnapshotRepo,
	exporter ExportWriter,
	tm Transaction,
	locker RunLocker,
	logger log.Logger,
) *PipelineUseCase {
	return &PipelineUseCase{
		lake:      lake,
		staging:   staging,
		warehouse: warehouse,
		marts:     marts,
		snapshots: snapshots,
		exporter:  exporter,
		tm:        tm,
		locker:    locker,
		tracer:    otel.Tracer("movieflix/biz"),
		log:       log.NewHelper(log.With(logger, "module", "biz/pipeline")),
	}
}

// Ingest loads a phase snapshot into staging, replacing what was there.
func (uc *PipelineUseCase) Ingest(ctx context.Context, phase Phase) (*IngestResult, error) {
	if !phase.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPhase, phase)
	}
	var res *IngestResult
	err := uc.locker.WithLock(ctx, func(ctx context.Context) error {
		var err error
		res, err = uc.ingest(ctx, phase)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Run executes the full pipeline for phase. Ingestion commits on its own;
// the warehouse and the marts are rebuilt in a single transaction.
func (uc *PipelineUseCase) Run(ctx context.Context, phase Phase) (*PipelineResult, error) {
	if !phase.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPhase, phase)
	}
	runID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run ID: %w", err)
	}
	ctx, span := uc.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", runID.String()),
		attribute.String("phase", phase.String()),
	))
	defer span.End()

	start := time.Now()
	uc.log.WithContext(ctx).Infow("msg", "pipeline started", "run_id", runID.String(), "phase", phase)

	res := &PipelineResult{RunID: runID.String(), Phase: phase}
	err = uc.locker.WithLock(ctx, func(ctx context.Context) error {
		ingest, err := uc.ingest(ctx, phase)
		if err != nil {
			return err
		}
		res.Ingest = ingest
		if err := uc.transform(ctx, phase); err != nil {
			return err
		}
		res.Export, err = uc.export(ctx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		uc.log.WithContext(ctx).Errorw("msg", "pipeline failed", "run_id", runID.String(), "phase", phase, "error", err)
		return nil, err
	}

	uc.log.WithContext(ctx).Infow("msg", "pipeline finished", "run_id", runID.String(), "phase", phase,
		"elapsed", time.Since(start).String(), "dir", res.Export.Dir)
	return res, nil
}

// Reload rebuilds the warehouse and the marts from the current staging contents.
func (uc *PipelineUseCase) Reload(ctx context.Context, phase Phase) error {
	if !phase.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPhase, phase)
	}
	return uc.locker.WithLock(ctx, func(ctx context.Context) error {
		return uc.transform(ctx, phase)
	})
}

// Export writes the warehouse and the marts to CSV files.
func (uc *PipelineUseCase) Export(ctx context.Context) (*ExportSummary, error) {
	return uc.export(ctx)
}

func (uc *PipelineUseCase) ingest(ctx context.Context, phase Phase) (*IngestResult, error) {
	var batch *Batch
	// Files are parsed before staging is touched so a bad file leaves it intact.
	err := uc.step(ctx, "read_lake", func(ctx context.Context) error {
		var err error
		batch, err = uc.lake.ReadBatch(ctx, phase)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := uc.step(ctx, "create_staging", uc.staging.EnsureSchema); err != nil {
		return nil, storeErr("create staging", err)
	}
	err = uc.step(ctx, "load_staging", func(ctx context.Context) error {
		return uc.staging.Replace(ctx, batch)
	})
	if err != nil {
		return nil, storeErr("load staging", err)
	}

	counts := batch.Counts()
	uc.log.WithContext(ctx).Infof("staged phase %s: movies=%d users=%d ratings=%d",
		phase, counts.Movies, counts.Users, counts.Ratings)
	if rep := PreviewCleaning(batch); rep != (CleaningReport{}) {
		uc.log.WithContext(ctx).Warnf("phase %s needs cleaning: ratings_clamped=%d users_age_unknown=%d imdb_rewritten=%d",
			phase, rep.RatingsClamped, rep.UsersAgeUnknown, rep.IMDbRewritten)
	}
	return &IngestResult{Phase: phase, Rows: counts}, nil
}

// transform is the warehouse batch: schema, conform, load and marts commit together.
func (uc *PipelineUseCase) transform(ctx context.Context, phase Phase) error {
	err := uc.tm.InTx(ctx, func(ctx context.Context) error {
		if err := uc.step(ctx, "create_warehouse", uc.warehouse.EnsureSchema); err != nil {
			return err
		}
		if phase.NeedsConform() {
			if err := uc.step(ctx, "conform_v3", uc.staging.ConformV3); err != nil {
				return err
			}
		}
		if err := uc.step(ctx, "load_warehouse", uc.warehouse.Load); err != nil {
			return err
		}
		return uc.step(ctx, "build_marts", uc.marts.Build)
	})
	if err != nil {
		return storeErr("load warehouse", err)
	}
	uc.marts.Invalidate(ctx)
	return nil
}

func (uc *PipelineUseCase) export(ctx context.Context) (*ExportSummary, error) {
	var snap *Snapshot
	err := uc.step(ctx, "read_snapshot", func(ctx context.Context) error {
		var err error
		snap, err = uc.snapshots.Snapshot(ctx)
		return err
	})
	if err != nil {
		return nil, storeErr("read snapshot", err)
	}

	var summary *ExportSummary
	err = uc.step(ctx, "write_export", func(ctx context.Context) error {
		var err error
		summary, err = uc.exporter.Write(ctx, snap)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write export: %w", err)
	}
	return summary, nil
}

func (uc *PipelineUseCase) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := uc.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		uc.log.WithContext(ctx).Warnf("step %s failed after %s: %v", name, time.Since(start), err)
		return err
	}
	uc.log.WithContext(ctx).Debugf("step %s done in %s", name, time.Since(start))
	return nil
}
