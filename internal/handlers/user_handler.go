package handlers

import (
	"errors"
	"net/http"

	"noisewatch/internal/config"
	"noisewatch/internal/media"
	"noisewatch/internal/middleware"
	"noisewatch/internal/observability"
	"noisewatch/internal/services"
	contextutils "noisewatch/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UserHandler serves the caller's own account
type UserHandler struct {
	userService services.UserServiceInterface
	mediaStore  media.Store
	cfg         *config.Config
	logger      *observability.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService services.UserServiceInterface, mediaStore media.Store, cfg *config.Config, logger *observability.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		mediaStore:  mediaStore,
		cfg:         cfg,
		logger:      logger,
	}
}

// UpdateProfilePhoto replaces the caller's profile photo with the uploaded image
func (h *UserHandler) UpdateProfilePhoto(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "update_profile_photo")
	defer observability.FinishSpan(span, nil)

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		HandleAppError(c, contextutils.WrapError(contextutils.ErrUnauthorized, "Authentication required"))
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadBytes())
	file, _, err := c.Request.FormFile("photo")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			HandleAppError(c, contextutils.WrapError(contextutils.ErrMissingRequired, "photo file is required"))
			return
		}
		HandleAppError(c, bodyError(err))
		return
	}
	defer func() { _ = file.Close() }()

	detected, body, err := media.Detect(file)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	if !detected.IsImage() {
		HandleAppError(c, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "photo must be an image (got %s)", detected.ContentType))
		return
	}

	name := "profile-" + userID + "-" + uuid.NewString() + detected.Extension
	url, err := h.mediaStore.Save(ctx, name, detected.ContentType, body)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	user, err := h.userService.UpdateProfilePhoto(ctx, userID, url)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
