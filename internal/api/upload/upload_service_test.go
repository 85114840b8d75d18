package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/FACorreiaa/go-posts-api/app/observability/metrics"
	"github.com/FACorreiaa/go-posts-api/internal/types"
)

type MockImageStore struct {
	mock.Mock
}

func (m *MockImageStore) Save(ctx context.Context, name string, r io.Reader) error {
	return m.Called(ctx, name, r).Error(0)
}

func (m *MockImageStore) Delete(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockImageStore) Handler() http.Handler {
	return http.NotFoundHandler()
}

func newTestUploadService(t *testing.T, store ImageStore) *ServiceImpl {
	t.Helper()
	appMetrics, err := metrics.New(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	return NewService(NewProcessor(800, 75), store, appMetrics, slog.Default())
}

func TestService_Store(t *testing.T) {
	ctx := context.Background()

	t.Run("processes and saves under a generated name", func(t *testing.T) {
		store := new(MockImageStore)
		svc := newTestUploadService(t, store)
		store.On("Save", mock.Anything, mock.MatchedBy(ValidFilename), mock.Anything).Return(nil).Once()

		name, err := svc.Store(ctx, bytes.NewReader(encodePNG(t, 100, 100)))
		require.NoError(t, err)
		assert.True(t, ValidFilename(name))
		store.AssertExpectations(t)
	})

	t.Run("undecodable input never reaches the store", func(t *testing.T) {
		store := new(MockImageStore)
		svc := newTestUploadService(t, store)

		_, err := svc.Store(ctx, strings.NewReader("nope"))
		assert.ErrorIs(t, err, types.ErrUnsupportedImage)
		store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("save failure", func(t *testing.T) {
		store := new(MockImageStore)
		svc := newTestUploadService(t, store)
		store.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()

		_, err := svc.Store(ctx, bytes.NewReader(encodePNG(t, 10, 10)))
		assert.Error(t, err)
		assert.NotErrorIs(t, err, types.ErrUnsupportedImage)
	})
}

func TestService_Discard(t *testing.T) {
	store := new(MockImageStore)
	svc := newTestUploadService(t, store)
	name := NewFilename()
	store.On("Delete", mock.Anything, name).Return(errors.New("gone")).Once()

	svc.Discard(context.Background(), name)
	store.AssertExpectations(t)
}
