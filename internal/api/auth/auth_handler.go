package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/FACorreiaa/go-posts-api/internal/api"
	"github.com/FACorreiaa/go-posts-api/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	Signup(w http.ResponseWriter, r *http.Request)
	Signin(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	authService AuthService
	logger      *slog.Logger
}

func NewHandlerImpl(authService AuthService, logger *slog.Logger) *HandlerImpl {
	if logger == nil {
		panic("PANIC: Attempting to create auth HandlerImpl with nil logger!")
	}
	return &HandlerImpl{
		authService: authService,
		logger:      logger,
	}
}

// Signup godoc
// @Summary      Sign up
// @Description  Creates a credential and returns an access token.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        credentials body types.AuthRequest true "Email and password"
// @Success      201 {object} types.TokenResponse
// @Failure      400 {object} types.ErrorEnvelope "Invalid input"
// @Failure      403 {object} types.ErrorEnvelope "Email already exists"
// @Failure      500 {object} types.ErrorEnvelope "Internal server error"
// @Router       /auth/signup [post]
func (h *HandlerImpl) Signup(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, "Signup", http.StatusCreated, h.authService.Signup)
}

// Signin godoc
// @Summary      Sign in
// @Description  Verifies a credential and returns an access token.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        credentials body types.AuthRequest true "Email and password"
// @Success      200 {object} types.TokenResponse
// @Failure      400 {object} types.ErrorEnvelope "Invalid input"
// @Failure      403 {object} types.ErrorEnvelope "Invalid credentials"
// @Failure      500 {object} types.ErrorEnvelope "Internal server error"
// @Router       /auth/signin [post]
func (h *HandlerImpl) Signin(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, "Signin", http.StatusOK, h.authService.Signin)
}

func (h *HandlerImpl) authenticate(w http.ResponseWriter, r *http.Request, name string, status int,
	flow func(ctx context.Context, email, password string) (string, error)) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", name))

	var req types.AuthRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.WriteError(w, r, l, err)
		return
	}
	if err := req.Validate(); err != nil {
		api.WriteError(w, r, l, fmt.Errorf("%w: %w", types.ErrValidation, err))
		return
	}

	token, err := flow(ctx, req.Email, req.Password)
	if err != nil {
		api.WriteError(w, r, l, err)
		return
	}

	api.WriteJSONResponse(w, r, status, types.TokenResponse{AccessToken: token})
}
