package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"acquisitions-api/internal/auth"
	"acquisitions-api/internal/domain"
	"acquisitions-api/internal/service"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	users        service.UserService
	tokens       *auth.TokenService
	logger       *logrus.Logger
	secureCookie bool
	startedAt    time.Time
}

func NewHandler(users service.UserService, tokens *auth.TokenService, logger *logrus.Logger, secureCookie bool) *Handler {
	return &Handler{
		users:        users,
		tokens:       tokens,
		logger:       logger,
		secureCookie: secureCookie,
		startedAt:    time.Now(),
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())
	router.Use(requestLogger(h.logger))

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Hello from Acquisitions!")
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "OK",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    time.Since(h.startedAt).Seconds(),
		})
	})
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})

	api := router.Group("/api")
	api.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Aquisitions API is running!"})
	})

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/sign-up", h.signUp)
		authRoutes.POST("/sign-in", h.signIn)
		authRoutes.POST("/sign-out", h.signOut)
	}

	userRoutes := api.Group("/users", h.requireAuth)
	{
		userRoutes.GET("/get-users", h.requireRole(domain.RoleAdmin), h.getUsers)
		userRoutes.GET("/:id", h.getUser)
		userRoutes.PUT("/:id", h.updateUser)
		userRoutes.DELETE("/:id", h.requireRole(domain.RoleAdmin), h.deleteUser)
	}
}

type signUpRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=255"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=128"`
	Role     string `json:"role" binding:"omitempty,oneof=user admin"`
}

type signInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type updateUserRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=2,max=255"`
	Email *string `json:"email" binding:"omitempty,email"`
	Role  *string `json:"role" binding:"omitempty,oneof=user admin"`
}

// authUserResponse is the identity shape returned by the auth endpoints.
type authUserResponse struct {
	ID    int64       `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

func authUserToResponse(user *domain.User) authUserResponse {
	return authUserResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	}
}

func (h *Handler) signUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.validationFailed(c, err)
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Name, req.Email, domain.Role(req.Role), req.Password)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already exist"})
			return
		}
		h.internalError(c, err)
		return
	}

	token, err := h.tokens.Sign(user)
	if err != nil {
		h.internalError(c, err)
		return
	}
	h.setSessionCookie(c, token)

	h.logger.Infof("user registered successfully: %s", user.Email)
	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered",
		"user":    authUserToResponse(user),
	})
}

func (h *Handler) signIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.validationFailed(c, err)
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		h.internalError(c, err)
		return
	}

	token, err := h.tokens.Sign(user)
	if err != nil {
		h.internalError(c, err)
		return
	}
	h.setSessionCookie(c, token)

	h.logger.Infof("user login successfully: %s", user.Email)
	c.JSON(http.StatusOK, gin.H{
		"message": "User logged in",
		"user":    authUserToResponse(user),
	})
}

func (h *Handler) signOut(c *gin.Context) {
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "User logged out"})
}

func (h *Handler) getUsers(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Successfully retrieved users",
		"users":   users,
		"count":   len(users),
	})
}

func (h *Handler) getUser(c *gin.Context) {
	id, ok := h.userIDParam(c)
	if !ok {
		return
	}

	user, err := h.users.GetUser(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Successfully retrieved user",
		"user":    user,
	})
}

func (h *Handler) updateUser(c *gin.Context) {
	id, ok := h.userIDParam(c)
	if !ok {
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.validationFailed(c, err)
		return
	}
	if req.Name == nil && req.Email == nil && req.Role == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Validation failed",
			"details": []fieldError{
				{Field: "body", Message: "at least one field must be provided"},
			},
		})
		return
	}

	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	if claims.Role != domain.RoleAdmin && claims.UserID != id {
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "Access denied",
			"message": "You can only update your own information",
		})
		return
	}

	changes := service.UserUpdate{Name: req.Name, Email: req.Email}
	// Only admins may change roles; a role supplied by anyone else is
	// dropped, not rejected.
	if req.Role != nil && claims.Role == domain.RoleAdmin {
		role := domain.Role(*req.Role)
		changes.Role = &role
	}

	user, err := h.users.UpdateUser(c.Request.Context(), id, changes)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		case errors.Is(err, service.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "Email already exists"})
		default:
			h.internalError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Successfully updated user",
		"user":    user,
	})
}

func (h *Handler) deleteUser(c *gin.Context) {
	id, ok := h.userIDParam(c)
	if !ok {
		return
	}

	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	// An admin deleting their own account would orphan the instance.
	if claims.UserID == id {
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "Operation denied",
			"message": "You cannot delete your own account",
		})
		return
	}

	user, err := h.users.DeleteUser(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User deleted successfully",
		"user":    user,
	})
}

func (h *Handler) userIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Validation failed",
			"details": []fieldError{
				{Field: "id", Message: "id must be a positive integer"},
			},
		})
		return 0, false
	}
	return id, true
}

func (h *Handler) validationFailed(c *gin.Context, err error) {
	if details, ok := formatValidationError(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Validation failed",
			"details": details,
		})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed"})
}

// internalError logs the cause and returns an opaque 500.
func (h *Handler) internalError(c *gin.Context, err error) {
	h.logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

func (h *Handler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, token, int(h.tokens.TTL().Seconds()), "/", "", h.secureCookie, true)
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, "", -1, "/", "", h.secureCookie, true)
}
