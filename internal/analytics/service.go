// Package analytics computes the lightweight per-role summaries shown next
// to the chat and on the dashboard.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/RichardoC/lms-chat/internal/canvas"
	"github.com/RichardoC/lms-chat/internal/models"
	"go.uber.org/zap"
)

type QuickAction struct {
	Action string `json:"action"`
	Label  string `json:"label"`
	Prompt string `json:"prompt"`
}

type CourseRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

// Snapshot is the quick analytics of one user.
type Snapshot struct {
	Role          models.Role   `json:"role"`
	CourseCount   int           `json:"course_count"`
	RecentCourses []CourseRef   `json:"recent_courses"`
	QuickActions  []QuickAction `json:"quick_actions"`
	GeneratedAt   time.Time     `json:"generated_at"`
	Error         string        `json:"error,omitempty"`
}

var quickActions = map[models.Role][]QuickAction{
	models.RoleAdmin: {
		{Action: "create_course", Label: "Create Course", Prompt: "Create a new course"},
		{Action: "list_users", Label: "View Users", Prompt: "Show me all users"},
		{Action: "create_user", Label: "Add User", Prompt: "Create a new user"},
	},
	models.RoleTeacher: {
		{Action: "create_assignment", Label: "New Assignment", Prompt: "Create an assignment"},
		{Action: "create_module", Label: "Add Module", Prompt: "Create a module"},
		{Action: "list_courses", Label: "My Courses", Prompt: "Show my courses"},
	},
	models.RoleStudent: {
		{Action: "list_courses", Label: "My Courses", Prompt: "Show my courses"},
		{Action: "upcoming", Label: "Upcoming", Prompt: "What's due this week?"},
		{Action: "learning_plan", Label: "Learning Plan", Prompt: "Generate my learning plan"},
		{Action: "progress", Label: "Progress", Prompt: "Show my course progress"},
	},
}

// QuickActions returns the suggested prompts of role.
func QuickActions(role models.Role) []QuickAction {
	if actions, ok := quickActions[role]; ok {
		return actions
	}
	return quickActions[models.RoleStudent]
}

type Service struct {
	canvas *canvas.Client
	cache  *Cache[*Snapshot]
	logger *zap.Logger
}

func NewService(client *canvas.Client, cache *Cache[*Snapshot], logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{canvas: client, cache: cache, logger: logger}
}

func cacheKey(role models.Role, userID int64) string {
	return fmt.Sprintf("%s_%d", role, userID)
}

// Quick returns the snapshot of a user and whether it came from the cache.
// Canvas failures are reported inside the snapshot and are not cached.
func (s *Service) Quick(ctx context.Context, role models.Role, userID int64) (*Snapshot, bool) {
	key := cacheKey(role, userID)
	if snap, ok := s.cache.Get(key); ok {
		return snap, true
	}

	snap := &Snapshot{
		Role:          role,
		RecentCourses: []CourseRef{},
		QuickActions:  QuickActions(role),
		GeneratedAt:   time.Now(),
	}
	courses, err := s.courses(ctx, role, userID)
	if err != nil {
		s.logger.Warn("quick analytics unavailable",
			zap.String("role", string(role)),
			zap.Int64("canvas_user_id", userID),
			zap.Error(err))
		snap.Error = "Course data is unavailable right now."
		return snap, false
	}
	snap.CourseCount = len(courses)
	for i, c := range courses {
		if i == 3 {
			break
		}
		snap.RecentCourses = append(snap.RecentCourses, CourseRef{ID: c.ID, Name: c.Name, Code: c.CourseCode})
	}
	s.cache.Set(key, snap)
	return snap, false
}

// Clear empties the cache.
func (s *Service) Clear() int { return s.cache.Clear() }

func (s *Service) courses(ctx context.Context, role models.Role, userID int64) ([]canvas.Course, error) {
	if role == models.RoleAdmin {
		return s.canvas.ListAccountCourses(ctx)
	}
	return s.client(role, userID).ListCourses(ctx)
}

func (s *Service) client(role models.Role, userID int64) *canvas.Client {
	if role == models.RoleAdmin || userID == 0 {
		return s.canvas
	}
	return s.canvas.As(userID)
}
