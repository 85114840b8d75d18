package post

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/FACorreiaa/go-posts-api/internal/api"
	"github.com/FACorreiaa/go-posts-api/internal/api/auth"
	"github.com/FACorreiaa/go-posts-api/internal/api/upload"
	"github.com/FACorreiaa/go-posts-api/internal/types"
)

const (
	imageField      = "image"
	multipartMemory = 1 << 20
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	Create(w http.ResponseWriter, r *http.Request)
	FindAll(w http.ResponseWriter, r *http.Request)
	FindOne(w http.ResponseWriter, r *http.Request)
	Update(w http.ResponseWriter, r *http.Request)
	Remove(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	postService PostService
	uploader    upload.ImageUploader
	maxBytes    int64
	logger      *slog.Logger
}

// NewHandlerImpl creates the posts handler. maxBytes caps the whole request body.
func NewHandlerImpl(postService PostService, uploader upload.ImageUploader, maxBytes int64, logger *slog.Logger) *HandlerImpl {
	if logger == nil {
		panic("PANIC: Attempting to create post HandlerImpl with nil logger!")
	}
	return &HandlerImpl{
		postService: postService,
		uploader:    uploader,
		maxBytes:    maxBytes,
		logger:      logger,
	}
}

// Create godoc
// @Summary      Create post
// @Description  Creates a post owned by the authenticated user, with an optional image.
// @Tags         Posts
// @Accept       multipart/form-data
// @Produce      json
// @Param        title   formData string true  "Title"
// @Param        content formData string false "Content"
// @Param        image   formData file   false "Image (jpeg, png, gif or webp)"
// @Success      201 {object} types.Post
// @Failure      400 {object} types.ErrorEnvelope "Invalid input"
// @Failure      401 {object} types.ErrorEnvelope "Unauthorized"
// @Failure      413 {object} types.ErrorEnvelope "Request body too large"
// @Failure      500 {object} types.ErrorEnvelope "Internal server error"
// @Security     BearerAuth
// @Router       /posts [post]
func (h *HandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "Create"))

	userID, ok := auth.GetUserIDFromContext(ctx)
	if !ok {
		api.WriteError(w, r, l, types.ErrUnauthorized)
		return
	}

	form, err := h.readForm(w, r)
	if err != nil {
		api.WriteError(w, r, l, err)
		return
	}
	defer form.cleanup()

	params := types.CreatePostParams{Title: form.value("title")}
	if content, ok := form.lookup("content"); ok {
		params.Content = &content
	}
	if err := params.Validate(); err != nil {
		api.WriteError(w, r, l, fmt.Errorf("%w: %w", types.ErrValidation, err))
		return
	}

	imageName, err := h.storeImage(r, form)
	if err != nil {
		api.WriteError(w, r, l, err)
		return
	}

	p, err := h.postService.Create(ctx, userID, params, imageName)
	if err != nil {
		h.discard(r, imageName)
		api.WriteError(w, r, l, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, p)
}

// FindAll godoc
// @Summary      List posts
// @Description  Lists every post with its author's email, newest first.
// @Tags         Posts
// @Produce      json
// @Success      200 {array}  types.PostWithAuthor
// @Failure      401 {object} types.ErrorEnvelope "Unauthorized"
// @Failure      500 {object} types.ErrorEnvelope "Internal server error"
// @Security     BearerAuth
// @Router       /posts [get]
func (h *HandlerImpl) FindAll(w http.ResponseWriter, r *http.Request) {
	posts, err := h.postService.FindAll(r.Context())
	if err != nil {
		api.WriteError(w, r, h.logger, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, posts)
}

// FindOne godoc
// @Summary      Get post
// @Tags         Posts
// @Produce      json
// @Param        id path int true "Post ID"
// @Success      200 {object} types.Post
// @Failure      400 {object} types.ErrorEnvelope "Invalid id"
// @Failure      401 {object} types.ErrorEnvelope "Unauthorized"
// @Failure      404 {object} types.ErrorEnvelope "Post not found"
// @Security     BearerAuth
// @Router       /posts/{id} [get]
func (h *HandlerImpl) FindOne(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		api.WriteError(w, r, h.logger, err)
		return
	}

	p, err := h.postService.FindOne(r.Context(), id)
	if err != nil {
		api.WriteError(w, r, h.logger, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, p)
}

// Update godoc
// @Summary      Update post
// @Description  Partially updates a post owned by the authenticated user. A new image replaces the stored one.
// @Tags         Posts
// @Accept       multipart/form-data
// @Produce      json
// @Param        id      path     int    true  "Post ID"
// @Param        title   formData string false "Title"
// @Param        content formData string false "Content"
// @Param        image   formData file   false "Image (jpeg, png, gif or webp)"
// @Success      200 {object} types.Post
// @Failure      400 {object} types.ErrorEnvelope "Invalid input"
// @Failure      401 {object} types.ErrorEnvelope "Unauthorized"
// @Failure      403 {object} types.ErrorEnvelope "Not the owner"
// @Failure      404 {object} types.ErrorEnvelope "Post not found"
// @Failure      413 {object} types.ErrorEnvelope "Request body too large"
// @Security     BearerAuth
// @Router       /posts/{id} [patch]
func (h *HandlerImpl) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "Update"))

	userID, ok := auth.GetUserIDFromContext(ctx)
	if !ok {
		api.WriteError(w, r, l, types.ErrUnauthorized)
		return
	}
	id, err := postID(r)
	if err != nil {
		api.WriteError(w, r, l, err)
		return
	}

	form, err := h.readForm(w, r)
	if err != nil {
		api.WriteError(w, r, l, err)
		return
	}
	defer form.cleanup()

	var params types.UpdatePostParams
	if title, ok := form.lookup("title"); ok {
		params.Title = &title
	}
	if content, ok := form.lookup("content"); ok {
		params.Content = &content
	}
	if err := params.Validate(); err != nil {
		api.WriteError(w, r, l, fmt.Errorf("%w: %w", types.ErrValidation, err))
		return
	}

	// Reject non-owners and missing posts before running the image pipeline.
	if form.hasImage() {
		if err := h.postService.Authorize(ctx, userID, id); err != nil {
			api.WriteError(w, r, l, err)
			return
		}
	}

	imageName, err := h.storeImage(r, form)
	if err != nil {
		api.WriteError(w, r, l, err)
		return
	}

	p, err := h.postService.Update(ctx, userID, id, params, imageName)
	if err != nil {
		h.discard(r, imageName)
		api.WriteError(w, r, l, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, p)
}

// Remove godoc
// @Summary      Delete post
// @Tags         Posts
// @Produce      json
// @Param        id path int true "Post ID"
// @Success      200 {object} types.Response
// @Failure      400 {object} types.ErrorEnvelope "Invalid id"
// @Failure      401 {object} types.ErrorEnvelope "Unauthorized"
// @Failure      403 {object} types.ErrorEnvelope "Not the owner"
// @Failure      404 {object} types.ErrorEnvelope "Post not found"
// @Security     BearerAuth
// @Router       /posts/{id} [delete]
func (h *HandlerImpl) Remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := auth.GetUserIDFromContext(ctx)
	if !ok {
		api.WriteError(w, r, h.logger, types.ErrUnauthorized)
		return
	}
	id, err := postID(r)
	if err != nil {
		api.WriteError(w, r, h.logger, err)
		return
	}

	resp, err := h.postService.Remove(ctx, userID, id)
	if err != nil {
		api.WriteError(w, r, h.logger, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func postID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id must be a positive integer", types.ErrValidation)
	}
	return id, nil
}

// postForm is the text fields and optional image of a multipart or JSON body.
type postForm struct {
	values    map[string]string
	multipart *multipart.Form
}

func (f *postForm) lookup(key string) (string, bool) {
	v, ok := f.values[key]
	return v, ok
}

func (f *postForm) value(key string) string {
	return f.values[key]
}

func (f *postForm) hasImage() bool {
	return f.multipart != nil && len(f.multipart.File[imageField]) > 0
}

func (f *postForm) cleanup() {
	if f.multipart != nil {
		_ = f.multipart.RemoveAll()
	}
}

// readForm accepts multipart/form-data (the only way to attach an image) or a
// JSON object with the text fields.
func (h *HandlerImpl) readForm(w http.ResponseWriter, r *http.Request) (*postForm, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType != "multipart/form-data" {
		var body struct {
			Title   *string `json:"title"`
			Content *string `json:"content"`
		}
		if err := api.DecodeJSONBody(w, r, &body); err != nil {
			return nil, err
		}
		form := &postForm{values: map[string]string{}}
		if body.Title != nil {
			form.values["title"] = *body.Title
		}
		if body.Content != nil {
			form.values["content"] = *body.Content
		}
		return form, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) || errors.Is(err, multipart.ErrMessageTooLarge) {
			return nil, fmt.Errorf("reading multipart body: %w", &http.MaxBytesError{Limit: h.maxBytes})
		}
		return nil, fmt.Errorf("%w: malformed multipart body", types.ErrValidation)
	}

	form := &postForm{values: map[string]string{}, multipart: r.MultipartForm}
	for key, vals := range r.MultipartForm.Value {
		if len(vals) > 0 {
			form.values[key] = vals[0]
		}
	}
	return form, nil
}

// storeImage runs the upload pipeline when the form carries an image and
// returns the stored filename, or "" when there is none.
func (h *HandlerImpl) storeImage(r *http.Request, form *postForm) (string, error) {
	if !form.hasImage() {
		return "", nil
	}
	headers := form.multipart.File[imageField]

	file, err := headers[0].Open()
	if err != nil {
		return "", fmt.Errorf("opening uploaded image: %w", err)
	}
	defer file.Close()

	return h.uploader.Store(r.Context(), file)
}

func (h *HandlerImpl) discard(r *http.Request, imageName string) {
	if imageName != "" {
		h.uploader.Discard(r.Context(), imageName)
	}
}
