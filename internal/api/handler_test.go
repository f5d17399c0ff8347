package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RichardoC/lms-chat/internal/analytics"
	"github.com/RichardoC/lms-chat/internal/auth"
	"github.com/RichardoC/lms-chat/internal/canvas"
	"github.com/RichardoC/lms-chat/internal/chat"
	"github.com/RichardoC/lms-chat/internal/config"
	"github.com/RichardoC/lms-chat/internal/db"
	"github.com/RichardoC/lms-chat/internal/intent"
	"github.com/RichardoC/lms-chat/internal/llm/llmtest"
	"github.com/RichardoC/lms-chat/internal/models"
	"github.com/RichardoC/lms-chat/internal/tools"
	"github.com/RichardoC/lms-chat/internal/usage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

type recorder struct {
	mu    sync.Mutex
	posts int
}

func (r *recorder) handle(w http.ResponseWriter, req *http.Request) {
	if req.Method == http.MethodPost {
		r.mu.Lock()
		r.posts++
		r.mu.Unlock()
	}
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(req.URL.Path, "/accounts/1/users"):
		json.NewEncoder(w).Encode([]canvas.User{{ID: 5, Name: "Jane Doe", LoginID: "jdoe"}})
	case strings.HasSuffix(req.URL.Path, "/users/5/enrollments"):
		json.NewEncoder(w).Encode([]canvas.Enrollment{{Type: "StudentEnrollment"}, {Type: "TeacherEnrollment"}})
	case strings.HasSuffix(req.URL.Path, "/courses"):
		json.NewEncoder(w).Encode([]canvas.Course{{ID: 3, Name: "Biology", CourseCode: "BIO101"}})
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errors":[{"message":"not found"}]}`))
	}
}

func (r *recorder) postCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.posts
}

type server struct {
	router *gin.Engine
	issuer *auth.Issuer
	lms    *recorder
}

func newServer(t *testing.T, authRequired bool) *server {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handle))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	database, err := db.New(filepath.Join(dir, "conversations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	store, err := usage.Open(filepath.Join(dir, "usage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	client := canvas.New(config.CanvasConfig{URL: srv.URL, Token: "t", AccountID: 1, Timeout: time.Second}, nil)
	dispatcher := tools.NewDispatcher(tools.DefaultCatalog(), client, nil, tools.WithUploadDir(filepath.Join(dir, "uploads")))
	backend := &llmtest.Backend{Replies: []llmtest.Reply{{Text: "Here you go."}}}
	chatSvc := chat.NewService(chat.Deps{
		Orchestrator: chat.NewOrchestrator(intent.NewPatternSelector(), dispatcher, 3, nil),
		Formatter:    chat.NewFormatter(backend, dispatcher.Catalog(), time.Second, nil),
		DB:           database,
		Usage:        store,
	})
	issuer := auth.NewIssuer("test-secret", time.Hour)

	h := NewHandler(Deps{
		Chat:         chatSvc,
		DB:           database,
		Usage:        store,
		Analytics:    analytics.NewService(client, analytics.NewCache[*analytics.Snapshot](time.Minute), nil),
		Canvas:       client,
		Dispatcher:   dispatcher,
		Issuer:       issuer,
		Backend:      backend,
		UploadDir:    filepath.Join(dir, "uploads"),
		AuthRequired: authRequired,
	})
	return &server{router: Router(h), issuer: issuer, lms: rec}
}

func (s *server) do(t *testing.T, method, path string, body any, token string) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func inference(content string, userID int64, role string) map[string]any {
	return map[string]any{
		"messages":       []map[string]string{{"role": "user", "content": content}},
		"canvas_user_id": userID,
		"user_role":      role,
	}
}

func TestHealth(t *testing.T) {
	s := newServer(t, true)

	code, body := s.do(t, http.MethodGet, "/health", nil, "")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "fake", body["inference_system"])
	assert.Equal(t, true, body["canvas_configured"])
}

func TestInferenceListsCourses(t *testing.T) {
	s := newServer(t, false)

	code, body := s.do(t, http.MethodPost, "/inference", inference("List my courses", 11, "student"), "")

	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, true, body["tool_used"])
	assert.Equal(t, "Here you go.", body["content"])
	assert.NotZero(t, body["conversation_id"])
	assert.NotEmpty(t, body["session_id"])

	code, body = s.do(t, http.MethodGet, "/usage-stats?canvas_user_id=11", nil, "")
	require.Equal(t, http.StatusOK, code)
	stats := body["usage_stats"].(map[string]any)
	assert.EqualValues(t, 1, stats["total_requests"])
}

func TestInferenceDeniesStudentMutation(t *testing.T) {
	s := newServer(t, false)

	code, body := s.do(t, http.MethodPost, "/inference", inference("Create a course called Physics", 11, "student"), "")

	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "permission_denied", body["status"])
	assert.Contains(t, body["content"], "not allowed to create courses")
	assert.Zero(t, s.lms.postCount())
}

func TestTokenOverridesRequestRole(t *testing.T) {
	s := newServer(t, false)
	token, _, err := s.issuer.Issue("student", 11, models.RoleStudent)
	require.NoError(t, err)

	code, body := s.do(t, http.MethodPost, "/inference", inference("Create a course called Physics", 1, "admin"), token)

	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "permission_denied", body["status"])
	assert.Zero(t, s.lms.postCount())
}

func TestInferenceRejectsBadInput(t *testing.T) {
	s := newServer(t, false)

	code, body := s.do(t, http.MethodPost, "/inference", map[string]any{"messages": []any{}}, "")

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_error", body["error"])
	assert.NotEmpty(t, body["message"])
}

func TestConversationRoutes(t *testing.T) {
	s := newServer(t, false)

	code, body := s.do(t, http.MethodPost, "/conversations", map[string]any{"canvas_user_id": 7, "title": "Planning"}, "")
	require.Equal(t, http.StatusCreated, code)
	id := int64(body["conversation_id"].(float64))
	path := "/conversations/" + strconv.FormatInt(id, 10)

	code, body = s.do(t, http.MethodGet, "/conversations?canvas_user_id=7", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["conversations"], 1)

	code, _ = s.do(t, http.MethodPut, path+"/title", map[string]any{"title": "Renamed"}, "")
	require.Equal(t, http.StatusOK, code)

	code, body = s.do(t, http.MethodGet, path+"/messages", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["messages"])

	code, _ = s.do(t, http.MethodDelete, path, nil, "")
	require.Equal(t, http.StatusOK, code)

	code, body = s.do(t, http.MethodDelete, path, nil, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["error"])
}

func TestConversationOfAnotherUserIsHidden(t *testing.T) {
	s := newServer(t, false)
	_, body := s.do(t, http.MethodPost, "/conversations", map[string]any{"canvas_user_id": 7, "title": "Private"}, "")
	id := int64(body["conversation_id"].(float64))
	token, _, err := s.issuer.Issue("other", 8, models.RoleStudent)
	require.NoError(t, err)

	code, _ := s.do(t, http.MethodGet, "/conversations/"+strconv.FormatInt(id, 10)+"/messages", nil, token)

	assert.Equal(t, http.StatusNotFound, code)
}

func TestAuthRequired(t *testing.T) {
	s := newServer(t, true)

	code, body := s.do(t, http.MethodGet, "/conversations?canvas_user_id=7", nil, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthenticated", body["error"])

	code, _ = s.do(t, http.MethodGet, "/conversations", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, code)

	token, _, err := s.issuer.Issue("jdoe", 7, models.RoleStudent)
	require.NoError(t, err)
	code, _ = s.do(t, http.MethodGet, "/conversations", nil, token)
	assert.Equal(t, http.StatusOK, code)
}

func TestDemoLogin(t *testing.T) {
	s := newServer(t, true)

	code, body := s.do(t, http.MethodPost, "/demo-login", map[string]any{"username": "jdoe"}, "")

	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "teacher", body["role"])
	assert.EqualValues(t, 5, body["canvas_user_id"])

	claims, err := s.issuer.Verify(body["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, claims.Role)
	assert.Equal(t, int64(5), claims.CanvasUserID)

	code, _ = s.do(t, http.MethodPost, "/demo-login", map[string]any{"username": "nobody"}, "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAnalyticsIsCached(t *testing.T) {
	s := newServer(t, false)

	_, first := s.do(t, http.MethodGet, "/analytics?canvas_user_id=11&user_role=student", nil, "")
	_, second := s.do(t, http.MethodGet, "/analytics?canvas_user_id=11&user_role=student", nil, "")

	assert.Equal(t, false, first["cached"])
	assert.Equal(t, true, second["cached"])

	code, body := s.do(t, http.MethodPost, "/analytics/clear", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["cleared"])
}

func TestUploadRejectsDisallowedType(t *testing.T) {
	s := newServer(t, false)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "payload.exe")
	require.NoError(t, err)
	fw.Write([]byte("MZ"))
	mw.WriteField("upload_type", "assignment")
	mw.WriteField("course_id", "3")
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-file", &buf).WithContext(context.Background())
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "File type not allowed")
	assert.Zero(t, s.lms.postCount())
}
