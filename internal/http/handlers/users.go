package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/calebross/markethub/internal/identity"
	"github.com/calebross/markethub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// UserStore is the slice of the data store the users handler needs: one
// write to persist the profile record next to the identity account.
type UserStore interface {
	Write(ctx context.Context, path string, value map[string]any) error
}

type UsersHandler struct {
	provider identity.Provider
	store    UserStore
	prom     *observability.Prom
}

func NewUsersHandler(provider identity.Provider, store UserStore, prom *observability.Prom) *UsersHandler {
	return &UsersHandler{provider: provider, store: store, prom: prom}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,emailformat"`
	Password string `json:"password" binding:"required,strongpassword"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *UsersHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		var verr validator.ValidationErrors

		if errors.As(err, &verr) {
			RespondBadRequest(ctx, "Invalid email or weak password format")
			return
		}

		RespondBadRequest(ctx, "Invalid request body")
		return
	}

	var claims identity.Claims

	err := h.observe("create_user", func() error {
		var err error
		claims, err = h.provider.CreateUser(ctx.Request.Context(), req.Email, req.Password)
		return err
	})

	if err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			RespondBadRequest(ctx, "Email is already registered")
			return
		}

		slog.Default().ErrorContext(ctx.Request.Context(), "user_registration_failed", "err", err)
		RespondBadRequest(ctx, "An error occurred while registering the user")
		return
	}

	err = h.store.Write(ctx.Request.Context(), "users/"+claims.UserID, map[string]any{
		"email":   claims.Email,
		"user_id": claims.UserID,
	})

	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "user_record_write_failed", "err", err, "uid", claims.UserID)
		RespondBadRequest(ctx, "An error occurred while registering the user")
		return
	}

	RespondMessage(ctx, http.StatusCreated, "User registered successfully")
}

func (h *UsersHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	var token string

	err := h.observe("sign_in", func() error {
		var err error
		token, err = h.provider.SignIn(ctx.Request.Context(), req.Email, req.Password)
		return err
	})

	if err != nil {
		RespondUnauthorized(ctx, "Email or password is incorrect")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"idToken": token})
}

func (h *UsersHandler) observe(op string, fn func() error) error {
	if h.prom == nil {
		return fn()
	}

	return h.prom.ObserveIdentity(op, fn)
}
