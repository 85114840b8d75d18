package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/go-posts-api/app/observability/metrics"
)

var _ ImageUploader = (*ServiceImpl)(nil)

type ImageUploader interface {
	// Store processes the image and returns the stored filename.
	Store(ctx context.Context, r io.Reader) (string, error)
	// Discard removes a stored image; failures are logged, not returned.
	Discard(ctx context.Context, name string)
}

type ServiceImpl struct {
	processor *Processor
	store     ImageStore
	metrics   *metrics.AppMetrics
	logger    *slog.Logger
}

func NewService(processor *Processor, store ImageStore, appMetrics *metrics.AppMetrics, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		processor: processor,
		store:     store,
		metrics:   appMetrics,
		logger:    logger,
	}
}

func (s *ServiceImpl) Store(ctx context.Context, r io.Reader) (name string, err error) {
	ctx, span := otel.Tracer("UploadService").Start(ctx, "Store")
	defer span.End()
	defer func() { s.metrics.ObserveImage(ctx, err) }()

	l := s.logger.With(slog.String("method", "Store"))

	data, err := s.processor.Process(r)
	if err != nil {
		l.WarnContext(ctx, "Failed to process image", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Process failed")
		return "", err
	}

	name = NewFilename()
	span.SetAttributes(attribute.String("image.name", name), attribute.Int("image.bytes", len(data)))
	if err = s.store.Save(ctx, name, bytes.NewReader(data)); err != nil {
		l.ErrorContext(ctx, "Failed to save image", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Save failed")
		return "", fmt.Errorf("storing image: %w", err)
	}

	l.InfoContext(ctx, "Image stored", slog.String("name", name), slog.Int("bytes", len(data)))
	span.SetStatus(codes.Ok, "Image stored")
	return name, nil
}

func (s *ServiceImpl) Discard(ctx context.Context, name string) {
	if err := s.store.Delete(ctx, name); err != nil {
		s.logger.ErrorContext(ctx, "Failed to discard image", slog.String("name", name), slog.Any("error", err))
	}
}
