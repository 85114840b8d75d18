package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-posts-api/config"
)

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewLocalStore(dir, slog.Default())
	require.NoError(t, err)

	name := NewFilename()
	require.NoError(t, store.Save(ctx, name, strings.NewReader("webp-bytes")))

	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, "webp-bytes", string(data))

	t.Run("serves stored file", func(t *testing.T) {
		rec := httptest.NewRecorder()
		store.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/"+name, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "webp-bytes", rec.Body.String())
	})

	t.Run("no listing or traversal", func(t *testing.T) {
		for _, p := range []string{"/", "/../secret", "/" + name + "/"} {
			rec := httptest.NewRecorder()
			store.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
			assert.Equal(t, http.StatusNotFound, rec.Code, p)
		}
	})

	t.Run("rejects invalid names", func(t *testing.T) {
		assert.ErrorIs(t, store.Save(ctx, "../x.webp", strings.NewReader("x")), ErrInvalidName)
		assert.ErrorIs(t, store.Delete(ctx, "x"), ErrInvalidName)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, name))
		_, err := os.Stat(filepath.Join(dir, name))
		assert.ErrorIs(t, err, os.ErrNotExist)
		assert.NoError(t, store.Delete(ctx, name))
	})
}

type MockObjectAPI struct {
	mock.Mock
}

func (m *MockObjectAPI) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func (m *MockObjectAPI) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.DeleteObjectOutput), args.Error(1)
}

type MockPresignAPI struct {
	mock.Mock
}

func (m *MockPresignAPI) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*v4.PresignedHTTPRequest), args.Error(1)
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	name := NewFilename()

	t.Run("save puts a webp object", func(t *testing.T) {
		objects, presigner := new(MockObjectAPI), new(MockPresignAPI)
		store := newS3Store("images", time.Minute, objects, presigner, slog.Default())

		objects.On("PutObject", ctx, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
			body, _ := io.ReadAll(in.Body)
			return *in.Bucket == "images" && *in.Key == name && *in.ContentType == "image/webp" && string(body) == "data"
		})).Return(&s3.PutObjectOutput{}, nil).Once()

		require.NoError(t, store.Save(ctx, name, bytes.NewReader([]byte("data"))))
		objects.AssertExpectations(t)
	})

	t.Run("non-seekable bodies are buffered", func(t *testing.T) {
		objects, presigner := new(MockObjectAPI), new(MockPresignAPI)
		store := newS3Store("images", time.Minute, objects, presigner, slog.Default())

		objects.On("PutObject", ctx, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
			_, seekable := in.Body.(io.ReadSeeker)
			return seekable
		})).Return(&s3.PutObjectOutput{}, nil).Once()

		require.NoError(t, store.Save(ctx, name, io.NopCloser(strings.NewReader("data"))))
		objects.AssertExpectations(t)
	})

	t.Run("put failure", func(t *testing.T) {
		objects, presigner := new(MockObjectAPI), new(MockPresignAPI)
		store := newS3Store("images", time.Minute, objects, presigner, slog.Default())
		objects.On("PutObject", ctx, mock.Anything).Return(nil, errors.New("access denied")).Once()

		assert.Error(t, store.Save(ctx, name, strings.NewReader("data")))
	})

	t.Run("delete", func(t *testing.T) {
		objects, presigner := new(MockObjectAPI), new(MockPresignAPI)
		store := newS3Store("images", time.Minute, objects, presigner, slog.Default())
		objects.On("DeleteObject", ctx, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
			return *in.Key == name
		})).Return(&s3.DeleteObjectOutput{}, nil).Once()

		require.NoError(t, store.Delete(ctx, name))
		objects.AssertExpectations(t)
	})

	t.Run("handler redirects to presigned url", func(t *testing.T) {
		objects, presigner := new(MockObjectAPI), new(MockPresignAPI)
		store := newS3Store("images", time.Minute, objects, presigner, slog.Default())
		presigner.On("PresignGetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
			return *in.Bucket == "images" && *in.Key == name
		})).Return(&v4.PresignedHTTPRequest{URL: "https://s3.example.com/images/" + name + "?sig=1"}, nil).Once()

		rec := httptest.NewRecorder()
		store.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/"+name, nil))

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "https://s3.example.com/images/"+name+"?sig=1", rec.Header().Get("Location"))
		presigner.AssertExpectations(t)
	})

	t.Run("handler rejects bad names without presigning", func(t *testing.T) {
		objects, presigner := new(MockObjectAPI), new(MockPresignAPI)
		store := newS3Store("images", time.Minute, objects, presigner, slog.Default())

		rec := httptest.NewRecorder()
		store.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/../../x", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		presigner.AssertNotCalled(t, "PresignGetObject", mock.Anything, mock.Anything)
	})
}

func TestNewImageStore(t *testing.T) {
	store, err := NewImageStore(context.Background(), config.UploadsConfig{Driver: DriverLocal, Dir: t.TempDir()}, slog.Default())
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)

	_, err = NewImageStore(context.Background(), config.UploadsConfig{Driver: "ftp"}, slog.Default())
	assert.Error(t, err)
}
