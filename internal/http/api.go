package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storytime/internal/service"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	accounts service.AccountService
	profiles service.ProfileService
	catalog  service.CatalogService
	logger   *logrus.Logger
}

func NewHandler(accounts service.AccountService, profiles service.ProfileService, catalog service.CatalogService, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		accounts: accounts,
		profiles: profiles,
		catalog:  catalog,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware(), requestLogger(h.logger))

	api := router.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
		api.GET("/languages", h.listLanguages)
		api.GET("/categories", h.listCategories)
	}

	users := api.Group("/users")
	{
		users.POST("/register", h.register)
		users.GET("/verifyEmail/:token", h.verifyEmail)
		users.POST("/login", h.login)
		users.POST("/forgotpassword", h.forgotPassword)
		users.POST("/resetpassword/:token", h.resetPassword)
	}

	authed := users.Group("", h.requireSession())
	{
		authed.GET("/refreshToken", h.catalogToken)
		authed.GET("/session", h.refreshSession)
		authed.GET("/profile", h.getProfile)
		authed.PUT("/profile", h.updateProfile)
		authed.POST("/profile", h.updateProfile)
		authed.PUT("/preferredlanguage", h.updatePreferredLanguages)
		authed.POST("/preferredlanguage", h.updatePreferredLanguages)
		authed.PUT("/updatepassword", h.updatePassword)
		authed.POST("/updatepassword", h.updatePassword)
		authed.POST("/savestory", h.saveStory)
		authed.DELETE("/removestory", h.removeStory)
		authed.GET("/library", h.library)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// bindBody decodes the request body by content type. An empty body leaves
// req at its zero value so the service reports which fields are missing.
func bindBody(c *gin.Context, req any) bool {
	if err := c.ShouldBind(req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body."})
		return false
	}
	return true
}

func (h *Handler) listLanguages(c *gin.Context) {
	langs, err := h.catalog.Languages(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]LanguageResponse, len(langs))
	for i := range langs {
		resp[i] = LanguageResponse{ID: langs[i].ID, Name: langs[i].Name, Code: langs[i].Code}
	}
	c.JSON(http.StatusOK, gin.H{"languages": resp})
}

func (h *Handler) listCategories(c *gin.Context) {
	cats, err := h.catalog.Categories(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]CategoryResponse, len(cats))
	for i := range cats {
		resp[i] = CategoryResponse{ID: cats[i].ID, Name: cats[i].Name}
	}
	c.JSON(http.StatusOK, gin.H{"categories": resp})
}

type LanguageResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type CategoryResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
