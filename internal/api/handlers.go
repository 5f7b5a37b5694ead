package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lernguide/internal/auth"
	"lernguide/internal/bridge"
	"lernguide/internal/logging"
	"lernguide/internal/metrics"
	"lernguide/internal/models"
	"lernguide/internal/service/generation"
	"lernguide/internal/service/study"
	"lernguide/internal/session"
)

const defaultMaxUploadBytes = 10 << 20 // 10 MB

type Options struct {
	MaxUploadBytes int64
	Logger         *logging.Logger
	Metrics        *metrics.Metrics
}

// Handler wires HTTP routes to the session controller and the study service.
type Handler struct {
	session   *session.Controller
	study     *study.Service
	auth      *auth.Service
	metrics   *metrics.Metrics
	log       *logging.Logger
	maxUpload int64
	now       func() time.Time
}

func NewHandler(ctl *session.Controller, svc *study.Service, authService *auth.Service, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if authService == nil {
		authService = auth.NewService("", 0)
	}
	return &Handler{
		session:   ctl,
		study:     svc,
		auth:      authService,
		metrics:   opts.Metrics,
		log:       opts.Logger.Named("api"),
		maxUpload: opts.MaxUploadBytes,
		now:       time.Now,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.healthz)
	router.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	api := router.Group("/api")
	api.POST("/auth/login", h.login)
	api.POST("/auth/logout", h.logout)

	protected := api.Group("")
	protected.Use(h.auth.Middleware())

	protected.GET("/session", h.getSession)
	protected.GET("/session/prior", h.getPriorSession)
	protected.POST("/session/continue", h.continueSession)
	protected.POST("/session/new", h.newSession)
	protected.POST("/session/reset", h.resetSession)
	protected.GET("/session/export", h.exportSession)
	protected.POST("/session/import", h.importSession)

	protected.POST("/documents/script", h.uploadScriptDocuments)
	protected.DELETE("/documents/script/:index", h.deleteScriptDocument)
	protected.PUT("/documents/practice", h.uploadPracticeDocument)
	protected.DELETE("/documents/practice", h.deletePracticeDocument)

	protected.PATCH("/settings", h.updateSettings)
	protected.PUT("/screen", h.setScreen)
	protected.POST("/generate", h.generate)
	protected.POST("/exam/grade", h.gradeExam)

	protected.GET("/notifications", h.listNotifications)
	protected.GET("/notifications/stream", h.streamNotifications)
	protected.DELETE("/notifications/:id", h.dismissNotification)
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"phase":    h.session.Phase(),
		"resolved": h.session.Resolved(),
	})
}

// Session lifecycle

func (h *Handler) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.view())
}

func (h *Handler) getPriorSession(c *gin.Context) {
	prior := h.session.PriorSession()
	if prior == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no prior session"})
		return
	}
	c.JSON(http.StatusOK, newPriorView(prior))
}

func (h *Handler) continueSession(c *gin.Context) {
	if err := h.session.Continue(c.Request.Context()); err != nil {
		h.writeError(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, h.view())
}

func (h *Handler) newSession(c *gin.Context) {
	h.session.StartNew(c.Request.Context())
	c.JSON(http.StatusOK, h.view())
}

func (h *Handler) resetSession(c *gin.Context) {
	h.session.Reset(c.Request.Context())
	c.JSON(http.StatusOK, h.view())
}

func (h *Handler) exportSession(c *gin.Context) {
	data, name, err := h.session.Export(h.now())
	if err != nil {
		h.writeError(c, err, http.StatusInternalServerError)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, bridge.ContentType, data)
}

func (h *Handler) importSession(c *gin.Context) {
	if !h.parseMultipart(c) {
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if file.Size > h.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	content, err := readAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "open file failed"})
		return
	}
	declared := file.Header.Get("Content-Type")
	if err := h.session.Import(c.Request.Context(), file.Filename, declared, content); err != nil {
		h.writeError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, h.view())
}

// Documents

func (h *Handler) uploadScriptDocuments(c *gin.Context) {
	if !h.parseMultipart(c) {
		return
	}
	form := c.Request.MultipartForm
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "files are required"})
		return
	}
	lastModified := form.Value["lastModified"]
	docs := make([]*models.Document, 0, len(files))
	for i, fh := range files {
		var lm string
		if i < len(lastModified) {
			lm = lastModified[i]
		}
		doc, status, err := h.readUpload(c.Request.Context(), fh, lm)
		if err != nil {
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		docs = append(docs, doc)
	}
	if err := h.session.AddScriptDocuments(docs...); err != nil {
		h.writeError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusCreated, h.view())
}

func (h *Handler) deleteScriptDocument(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document index"})
		return
	}
	if err := h.session.RemoveScriptDocument(index); err != nil {
		h.writeError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, h.view())
}

func (h *Handler) uploadPracticeDocument(c *gin.Context) {
	if !h.parseMultipart(c) {
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	doc, status, err := h.readUpload(c.Request.Context(), file, c.PostForm("lastModified"))
	if err != nil {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	if err := h.session.SetPracticeDocument(doc); err != nil {
		h.writeError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, h.view())
}

func (h *Handler) deletePracticeDocument(c *gin.Context) {
	if err := h.session.SetPracticeDocument(nil); err != nil {
		h.writeError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, h.view())
}

// Settings and study actions

func (h *Handler) updateSettings(c *gin.Context) {
	var req session.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.session.ApplySettings(req); err != nil {
		h.writeError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, h.view())
}

type screenRequest struct {
	Screen models.ScreenState `json:"screen"`
}

func (h *Handler) setScreen(c *gin.Context) {
	var req screenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Screen == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "screen is required"})
		return
	}
	if err := h.study.EnterMode(c.Request.Context(), req.Screen); err != nil {
		h.writeError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, h.view())
}

type generateRequest struct {
	Action models.Action `json:"action"`
}

func (h *Handler) generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Action == "" {
		req.Action = h.session.State().Action
	}
	if !req.Action.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
		return
	}
	if err := h.study.Generate(c.Request.Context(), req.Action); err != nil {
		h.writeError(c, err, http.StatusBadGateway)
		return
	}
	c.JSON(http.StatusOK, h.view())
}

type gradeRequest struct {
	Answers []generation.ExamAnswer `json:"answers"`
}

func (h *Handler) gradeExam(c *gin.Context) {
	var req gradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	results, err := h.study.GradeExam(c.Request.Context(), req.Answers)
	if err != nil {
		h.writeError(c, err, http.StatusBadGateway)
		return
	}
	c.JSON(http.StatusOK, gin.H{"examResults": results})
}

// Browser auth

type loginRequest struct {
	Token string `json:"token"`
}

// login exchanges the API token for an auth cookie plus a CSRF cookie.
func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.auth.ValidateToken(req.Token); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	csrfToken, err := h.auth.NewCSRFToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	h.setAuthCookies(c, req.Token, csrfToken)
	c.JSON(http.StatusOK, gin.H{"csrf_token": csrfToken})
}

func (h *Handler) logout(c *gin.Context) {
	h.clearAuthCookies(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) setAuthCookies(c *gin.Context, authToken, csrfToken string) {
	ttl := int(h.auth.CookieTTL().Seconds())
	if ttl <= 0 {
		ttl = 3600
	}
	secure := gin.Mode() == gin.ReleaseMode
	setCookie(c, &http.Cookie{
		Name:     h.auth.AuthCookieName(),
		Value:    authToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	setCookie(c, &http.Cookie{
		Name:     h.auth.CSRFCookieName(),
		Value:    csrfToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	for _, name := range []string{h.auth.AuthCookieName(), h.auth.CSRFCookieName()} {
		setCookie(c, &http.Cookie{
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			Path:     "/",
			Secure:   gin.Mode() == gin.ReleaseMode,
			HttpOnly: name == h.auth.AuthCookieName(),
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func setCookie(c *gin.Context, ck *http.Cookie) {
	if ck == nil {
		return
	}
	http.SetCookie(c.Writer, ck)
}

// writeError maps domain errors to status codes; fallback covers the rest.
func (h *Handler) writeError(c *gin.Context, err error, fallback int) {
	status := fallback
	var (
		importErr *bridge.ImportError
		recErr    *session.ReconstructionError
	)
	switch {
	case errors.Is(err, session.ErrSessionPending),
		errors.Is(err, session.ErrNoPriorSession),
		errors.Is(err, study.ErrBusy),
		errors.Is(err, study.ErrStale):
		status = http.StatusConflict
	case errors.As(err, &recErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &importErr),
		errors.Is(err, session.ErrPracticeRequired),
		errors.Is(err, session.ErrIndexOutOfRange),
		errors.Is(err, study.ErrNoScriptDocuments),
		errors.Is(err, study.ErrNoAnswers),
		errors.Is(err, study.ErrInvalidMode):
		status = http.StatusBadRequest
	case errors.Is(err, generation.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, session.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
