package api

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/grantgpt/grant-matcher/internal/auth"
	"github.com/grantgpt/grant-matcher/internal/match"
	"github.com/grantgpt/grant-matcher/internal/models"
	"github.com/grantgpt/grant-matcher/internal/vectorstore"
)

type Server struct {
	Echo        *echo.Echo
	DB          *pgxpool.Pool
	AuthService *auth.Service
	Matcher     *match.Matcher
	Store       vectorstore.Store

	dimensions int
}

var (
	adminSecretOnce    sync.Once
	adminSecretRuntime string
	adminSecretErr     error
)

func NewServer(pool *pgxpool.Pool, matcher *match.Matcher, store vectorstore.Store, dimensions int, allowOrigins []string) *Server {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// CORS: allow frontend origins from config or default to localhost
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"http://localhost:4200"}
	}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowOrigins = append(allowOrigins, o)
			}
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	s := &Server{
		Echo:        e,
		DB:          pool,
		AuthService: auth.NewService(pool),
		Matcher:     matcher,
		Store:       store,
		dimensions:  dimensions,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api/v1")

	api.POST("/grants/search", s.handleSearchGrants)
	api.GET("/grants", s.handleListGrants)
	api.GET("/grants/:id", s.handleGetGrant)
	api.GET("/stats", s.handleGetStats)

	// Auth Routes
	api.POST("/auth/signup", s.handleSignup)
	api.POST("/auth/login", s.handleLogin)

	// Protected Routes
	me := api.Group("/me")
	me.Use(auth.Middleware)
	me.GET("", s.handleGetProfile)

	saved := api.Group("/saved")
	saved.Use(auth.Middleware)
	saved.POST("", s.handleSaveGrant)
	saved.DELETE("", s.handleUnsaveGrant)
	saved.GET("", s.handleGetSavedGrants)

	// Admin Routes
	admin := api.Group("/admin")
	admin.Use(s.adminMiddleware)
	admin.POST("/collections", s.handleEnsureCollection)
	admin.DELETE("/grants", s.handleDeleteGrant)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// matchError maps matching-core failures onto HTTP statuses. Bad input is
// the caller's fault; unreachable embeddings or index are an upstream
// failure.
func matchError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, match.ErrInvalidQuery):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, match.ErrEmbeddingUnavailable), errors.Is(err, match.ErrVectorStoreUnavailable):
		c.Logger().Errorf("upstream failure: %v", err)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "upstream service unavailable"})
	default:
		c.Logger().Errorf("match failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func (s *Server) handleSearchGrants(c echo.Context) error {
	var req match.SearchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	grants, err := s.Matcher.Search(c.Request().Context(), req)
	if err != nil {
		return matchError(c, err)
	}

	if grants == nil {
		grants = []models.Grant{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"matches": grants,
		"count":   len(grants),
	})
}

func (s *Server) handleListGrants(c echo.Context) error {
	params := match.ListParams{
		Type:     c.QueryParam("type"),
		Category: c.QueryParam("category"),
	}
	if params.Type != "" && !models.ValidType(params.Type) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown grant type %q", params.Type)})
	}
	if params.Category != "" && !models.ValidCategory(params.Category) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown grant category %q", params.Category)})
	}
	if v, err := strconv.Atoi(c.QueryParam("skip")); err == nil && v >= 0 {
		params.Skip = v
	}
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 {
		params.Limit = v
	}

	grants, err := s.Matcher.List(c.Request().Context(), params)
	if err != nil {
		return matchError(c, err)
	}
	if grants == nil {
		grants = []models.Grant{}
	}
	return c.JSON(http.StatusOK, grants)
}

func (s *Server) handleGetGrant(c echo.Context) error {
	// Grant IDs are usually funding-page URLs and arrive percent-encoded.
	id := c.Param("id")
	if decoded, err := url.PathUnescape(id); err == nil {
		id = decoded
	}
	grant, found, err := s.Matcher.Get(c.Request().Context(), id)
	if err != nil {
		return matchError(c, err)
	}
	if !found {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "grant not found"})
	}
	return c.JSON(http.StatusOK, grant)
}

func (s *Server) handleGetStats(c echo.Context) error {
	stats, err := s.Matcher.Stats(c.Request().Context())
	if err != nil {
		return matchError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleSignup(c echo.Context) error {
	var req auth.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "email and password are required"})
	}

	resp, err := s.AuthService.Signup(c.Request().Context(), req)
	if err != nil {
		if err == auth.ErrUserExists {
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	resp, err := s.AuthService.Login(c.Request().Context(), req)
	if err != nil {
		if err == auth.ErrInvalidCreds {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetProfile(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	user, err := s.AuthService.GetProfile(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load profile"})
	}
	return c.JSON(http.StatusOK, user)
}

// Saved grants are keyed by the grant's stable ID, which is usually its
// funding-page URL. URLs do not survive as path parameters, so the ID
// travels in the body (POST) or the grant_id query parameter (DELETE).

type saveGrantRequest struct {
	GrantID string `json:"grant_id"`
}

func (s *Server) handleSaveGrant(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	var req saveGrantRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.GrantID) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "grant_id is required"})
	}

	if err := s.AuthService.SaveGrant(ctx, userID, req.GrantID); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to save grant"})
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleUnsaveGrant(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	grantID := strings.TrimSpace(c.QueryParam("grant_id"))
	if grantID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "grant_id is required"})
	}

	if err := s.AuthService.UnsaveGrant(ctx, userID, grantID); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to unsave grant"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "unsaved"})
}

func (s *Server) handleGetSavedGrants(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	ids, err := s.AuthService.GetSavedGrantIDs(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to fetch saved grants"})
	}

	// Resolve IDs against the index. A grant removed from the corpus since
	// it was saved is dropped silently rather than failing the list.
	grants := make([]models.Grant, 0, len(ids))
	for _, id := range ids {
		grant, found, err := s.Matcher.Get(ctx, id)
		if err != nil {
			return matchError(c, err)
		}
		if found {
			grants = append(grants, grant)
		}
	}

	return c.JSON(http.StatusOK, grants)
}

// Admin Handlers

func (s *Server) handleEnsureCollection(c echo.Context) error {
	if err := s.Store.EnsureCollection(c.Request().Context(), s.dimensions); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message":    "collection ready",
		"dimensions": s.dimensions,
	})
}

func (s *Server) handleDeleteGrant(c echo.Context) error {
	grantID := strings.TrimSpace(c.QueryParam("grant_id"))
	if grantID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "grant_id is required"})
	}
	if err := s.Store.Delete(c.Request().Context(), grantID); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret, err := adminSecret()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "server admin configuration error"})
		}

		// Check X-Admin-Secret header or Bearer token
		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader == secret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == secret {
				return next(c)
			}
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized admin access"})
	}
}

func adminSecret() (string, error) {
	adminSecretOnce.Do(func() {
		secret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
		if secret != "" {
			adminSecretRuntime = secret
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			adminSecretErr = fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
			return
		}

		adminSecretRuntime = base64.RawURLEncoding.EncodeToString(buf)
		log.Print("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if adminSecretErr != nil {
		return "", adminSecretErr
	}
	if adminSecretRuntime == "" {
		return "", fmt.Errorf("admin secret unavailable")
	}

	return adminSecretRuntime, nil
}
