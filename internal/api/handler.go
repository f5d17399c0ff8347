package api

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/RichardoC/lms-chat/internal/analytics"
	"github.com/RichardoC/lms-chat/internal/apperr"
	"github.com/RichardoC/lms-chat/internal/auth"
	"github.com/RichardoC/lms-chat/internal/canvas"
	"github.com/RichardoC/lms-chat/internal/chat"
	"github.com/RichardoC/lms-chat/internal/db"
	"github.com/RichardoC/lms-chat/internal/llm"
	"github.com/RichardoC/lms-chat/internal/models"
	"github.com/RichardoC/lms-chat/internal/tools"
	"github.com/RichardoC/lms-chat/internal/usage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	chat           *chat.Service
	db             *db.Database
	usage          *usage.Store
	analytics      *analytics.Service
	canvas         *canvas.Client
	dispatcher     *tools.Dispatcher
	issuer         *auth.Issuer
	backend        llm.Backend // optional, reported by /health
	uploadDir      string
	maxUploadBytes int64
	authRequired   bool
	logger         *zap.Logger
}

type Deps struct {
	Chat           *chat.Service
	DB             *db.Database
	Usage          *usage.Store
	Analytics      *analytics.Service
	Canvas         *canvas.Client
	Dispatcher     *tools.Dispatcher
	Issuer         *auth.Issuer
	Backend        llm.Backend
	UploadDir      string
	MaxUploadBytes int64
	AuthRequired   bool
	Logger         *zap.Logger
}

func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxBytes := deps.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 25 << 20
	}
	return &Handler{
		chat:           deps.Chat,
		db:             deps.DB,
		usage:          deps.Usage,
		analytics:      deps.Analytics,
		canvas:         deps.Canvas,
		dispatcher:     deps.Dispatcher,
		issuer:         deps.Issuer,
		backend:        deps.Backend,
		uploadDir:      deps.UploadDir,
		maxUploadBytes: maxBytes,
		authRequired:   deps.AuthRequired,
		logger:         logger,
	}
}

type CreateConversationRequest struct {
	CanvasUserID int64  `json:"canvas_user_id"`
	Title        string `json:"title"`
}

type UpdateConversationRequest struct {
	Title string `json:"title"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
}

// fail writes the error body. Internal causes are logged and never returned.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("kind", string(kind)),
			zap.Error(err))
	} else {
		h.logger.Debug("request rejected",
			zap.String("path", c.FullPath()),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": kind, "message": apperr.UserMessage(err)})
}

func (h *Handler) HandleInference(c *gin.Context) {
	var req chat.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Wrap(apperr.KindValidation, err, "Invalid request body"))
		return
	}
	role, userID := caller(c, req.Role, req.CanvasUserID)
	req.Role, req.CanvasUserID = string(role), userID

	resp, err := h.chat.ProcessMessage(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetAnalytics(c *gin.Context) {
	userID, err := queryInt(c, "canvas_user_id")
	if err != nil {
		h.fail(c, err)
		return
	}
	role, userID := caller(c, c.Query("user_role"), userID)
	if h.analytics == nil || !h.canvas.Configured() {
		c.JSON(http.StatusOK, gin.H{
			"analytics": analytics.Snapshot{Role: role, RecentCourses: []analytics.CourseRef{}, QuickActions: analytics.QuickActions(role)},
			"cached":    false,
		})
		return
	}
	snap, cached := h.analytics.Quick(c.Request.Context(), role, userID)
	c.JSON(http.StatusOK, gin.H{"analytics": snap, "cached": cached})
}

func (h *Handler) ClearAnalytics(c *gin.Context) {
	var cleared int
	if h.analytics != nil {
		cleared = h.analytics.Clear()
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cleared": cleared})
}

func (h *Handler) DashboardWidgets(c *gin.Context) {
	userID, err := queryInt(c, "canvas_user_id")
	if err != nil {
		h.fail(c, err)
		return
	}
	role, userID := caller(c, c.Query("user_role"), userID)
	if h.analytics == nil || !h.canvas.Configured() {
		h.fail(c, apperr.New(apperr.KindUpstreamError, "Canvas LMS is not configured"))
		return
	}
	widgets, err := h.analytics.Widgets(c.Request.Context(), role, userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, widgets)
}

func (h *Handler) GetConversations(c *gin.Context) {
	ownerID, err := queryInt(c, "canvas_user_id")
	if err != nil {
		h.fail(c, err)
		return
	}
	_, ownerID = caller(c, "", ownerID)
	if ownerID == 0 {
		h.fail(c, apperr.New(apperr.KindValidation, "canvas_user_id is required"))
		return
	}

	conversations, err := h.db.GetConversations(c.Request.Context(), ownerID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.logger.Debug("retrieved conversations",
		zap.Int("count", len(conversations)),
		zap.Int64("canvas_user_id", ownerID))
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

func (h *Handler) CreateConversation(c *gin.Context) {
	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Wrap(apperr.KindValidation, err, "Invalid request body"))
		return
	}
	_, ownerID := caller(c, "", req.CanvasUserID)
	if ownerID == 0 {
		h.fail(c, apperr.New(apperr.KindValidation, "canvas_user_id is required"))
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "New Conversation"
	}

	conv, err := h.db.CreateConversation(c.Request.Context(), ownerID, title)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"conversation_id": conv.ID, "conversation": conv})
}

func (h *Handler) GetMessages(c *gin.Context) {
	conv, ok := h.conversation(c)
	if !ok {
		return
	}
	messages, err := h.db.GetMessages(c.Request.Context(), conv.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	conv, ok := h.conversation(c)
	if !ok {
		return
	}
	if err := h.db.DeleteConversation(c.Request.Context(), conv.ID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) UpdateConversation(c *gin.Context) {
	var req UpdateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Wrap(apperr.KindValidation, err, "Invalid request body"))
		return
	}
	conv, ok := h.conversation(c)
	if !ok {
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Untitled"
	}
	if err := h.db.UpdateConversationTitle(c.Request.Context(), conv.ID, title); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// conversation loads the :id conversation. A token holder only sees their own.
func (h *Handler) conversation(c *gin.Context) (*models.Conversation, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.fail(c, apperr.New(apperr.KindValidation, "Invalid conversation ID"))
		return nil, false
	}
	conv, err := h.db.GetConversation(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	if claims := identity(c); claims != nil && claims.CanvasUserID != conv.OwnerID {
		h.fail(c, apperr.New(apperr.KindNotFound, "conversation %d not found", id))
		return nil, false
	}
	return conv, true
}

func (h *Handler) UsageStats(c *gin.Context) {
	userID, err := queryInt(c, "canvas_user_id")
	if err != nil {
		h.fail(c, err)
		return
	}
	days, err := queryInt(c, "days")
	if err != nil {
		h.fail(c, err)
		return
	}
	_, userID = caller(c, "", userID)
	if h.usage == nil {
		h.fail(c, apperr.New(apperr.KindUpstreamError, "Usage tracking is disabled"))
		return
	}
	stats, err := h.usage.Stats(c.Request.Context(), userID, int(days))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"usage_stats": stats})
}

// DemoLogin looks the user up in Canvas and issues a session token. There is
// no password check; the Canvas account must simply exist.
func (h *Handler) DemoLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Wrap(apperr.KindValidation, err, "username is required"))
		return
	}
	if !h.canvas.Configured() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "unavailable", "message": "Canvas LMS not configured"})
		return
	}

	ctx := c.Request.Context()
	user, err := h.canvas.FindUserByLogin(ctx, req.Username)
	if apperr.KindOf(err) == apperr.KindNotFound {
		h.fail(c, apperr.Wrap(apperr.KindUnauthenticated, err, "Invalid credentials"))
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	role := models.RoleStudent
	enrollments, err := h.canvas.ListUserEnrollments(ctx, user.ID)
	if err != nil {
		h.logger.Warn("could not load enrollments, defaulting to student",
			zap.Int64("canvas_user_id", user.ID),
			zap.Error(err))
	} else {
		role = auth.RoleFromEnrollments(enrollments)
	}

	token, expires, err := h.issuer.Issue(req.Username, user.ID, role)
	if err != nil {
		h.fail(c, apperr.Wrap(apperr.KindInternal, err, "Failed to issue token"))
		return
	}
	h.logger.Info("demo login",
		zap.String("username", req.Username),
		zap.Int64("canvas_user_id", user.ID),
		zap.String("role", string(role)))
	c.JSON(http.StatusOK, gin.H{
		"token":          token,
		"expires_at":     expires,
		"role":           role,
		"username":       req.Username,
		"canvas_user_id": user.ID,
	})
}

func (h *Handler) Health(c *gin.Context) {
	body := gin.H{
		"status":            "healthy",
		"canvas_configured": h.canvas.Configured(),
		"database":          "ok",
		"time":              time.Now().UTC(),
	}
	if h.backend != nil {
		body["inference_system"] = h.backend.Name()
		body["model"] = h.backend.Model()
	}
	if err := h.db.Ping(c.Request.Context()); err != nil {
		h.logger.Warn("database ping failed", zap.Error(err))
		body["status"] = "degraded"
		body["database"] = "unavailable"
	}
	c.JSON(http.StatusOK, body)
}

var uploadTools = map[string]string{
	"assignment": tools.UploadAssignmentFile,
	"module":     tools.UploadModuleFile,
	"submission": tools.SubmitAssignmentFile,
}

// UploadFile stores a multipart file and hands it to the matching upload
// tool. The stored copy is removed once Canvas has it.
func (h *Handler) UploadFile(c *gin.Context) {
	kind := c.DefaultPostForm("upload_type", "assignment")
	name, ok := uploadTools[kind]
	if !ok {
		h.fail(c, apperr.New(apperr.KindValidation, "upload_type must be assignment, module or submission"))
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		h.fail(c, apperr.Wrap(apperr.KindValidation, err, "No file provided"))
		return
	}
	if header.Size > h.maxUploadBytes {
		h.fail(c, apperr.New(apperr.KindValidation, "File too large (limit %d MB)", h.maxUploadBytes>>20))
		return
	}
	src, err := header.Open()
	if err != nil {
		h.fail(c, apperr.Wrap(apperr.KindValidation, err, "Could not read the uploaded file"))
		return
	}
	defer src.Close()

	path, err := tools.SaveUpload(h.uploadDir, header.Filename, src, h.maxUploadBytes)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			h.logger.Warn("failed to remove upload", zap.String("path", path), zap.Error(err))
		}
	}()

	userID, _ := strconv.ParseInt(c.PostForm("canvas_user_id"), 10, 64)
	role, userID := caller(c, c.PostForm("user_role"), userID)

	args := tools.Args{"file_path": path}
	for _, key := range []string{"course_id", "assignment_id", "module_id", "assignment_name", "title", "description", "points", "comment"} {
		if v := strings.TrimSpace(c.PostForm(key)); v != "" {
			args[key] = v
		}
	}

	res := h.dispatcher.Dispatch(c.Request.Context(), tools.Caller{Role: role, CanvasUserID: userID}, tools.Call{Name: name, Args: args})
	if !res.OK() {
		h.fail(c, res.Err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tool": name, "result": res.Data})
}

func queryInt(c *gin.Context, key string) (int64, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, apperr.New(apperr.KindValidation, "%s must be an integer", key)
	}
	return n, nil
}
