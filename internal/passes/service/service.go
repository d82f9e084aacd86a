package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mountpass/internal/passes/media"
	passmetrics "mountpass/internal/passes/metrics"
	"mountpass/internal/passes/models"
	dErrors "mountpass/pkg/domain-errors"
	"mountpass/pkg/platform/sentinel"
)

type SubmitterStore interface {
	Create(ctx context.Context, s *models.Submitter) error
	Update(ctx context.Context, s *models.Submitter) error
	FindByID(ctx context.Context, id int64) (*models.Submitter, error)
	FindByEmail(ctx context.Context, email string) (*models.Submitter, error)
}

type PassStore interface {
	CreateCoords(ctx context.Context, c *models.Coords) error
	UpdateCoords(ctx context.Context, c *models.Coords) error
	CreateLevel(ctx context.Context, l *models.Level) error
	UpdateLevel(ctx context.Context, l *models.Level) error
	Create(ctx context.Context, p *models.Pass) error
	Update(ctx context.Context, p *models.Pass) error
	AddImage(ctx context.Context, img *models.Image) error
	RemoveImages(ctx context.Context, passID int64) ([]models.Image, error)
	FindByID(ctx context.Context, id int64) (*models.Pass, error)
	FindByIDForUpdate(ctx context.Context, id int64) (*models.Pass, error)
	ListBySubmitter(ctx context.Context, submitterID int64, filter models.ListFilter) ([]*models.Pass, int, error)
}

// Outbox records pass events inside the caller's transaction.
type Outbox interface {
	Append(ctx context.Context, event models.Event) error
}

// MediaStore holds image binaries outside the database.
type MediaStore interface {
	Inspect(data []byte) (string, error)
	Save(data []byte, now time.Time) (*media.Asset, error)
	Delete(path string) error
}

// Service orchestrates pass submission, editing and moderation.
type Service struct {
	submitters       SubmitterStore
	passes           PassStore
	media            MediaStore
	outbox           Outbox
	tx               StoreTx
	logger           *slog.Logger
	metrics          *passmetrics.Metrics
	tracer           trace.Tracer
	refreshSubmitter bool
}

type Option func(*Service)

// WithTx sets the transaction boundary. Without it the service snapshots
// in-memory stores.
func WithTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithOutbox(outbox Outbox) Option {
	return func(s *Service) {
		s.outbox = outbox
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *passmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithSubmitterRefresh overwrites stored names and phone with the values of
// a repeat submission.
func WithSubmitterRefresh(enabled bool) Option {
	return func(s *Service) {
		s.refreshSubmitter = enabled
	}
}

// New constructs a Service.
func New(submitters SubmitterStore, passes PassStore, mediaStore MediaStore, opts ...Option) *Service {
	s := &Service{
		submitters: submitters,
		passes:     passes,
		media:      mediaStore,
		logger:     slog.Default(),
		tracer:     otel.Tracer("mountpass/passes"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		var snaps []Snapshotter
		for _, st := range []any{submitters, passes, s.outbox} {
			if sn, ok := st.(Snapshotter); ok {
				snaps = append(snaps, sn)
			}
		}
		s.tx = NewInMemoryTx(snaps...)
	}
	return s
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "passes."+name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, dErrors.MessageOf(err))
	}
	span.End()
}

func wrapPassErr(err error, action string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "pass not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+action)
}
