package analytics

import (
	"context"
	"time"

	"github.com/RichardoC/lms-chat/internal/canvas"
	"github.com/RichardoC/lms-chat/internal/models"
	"golang.org/x/sync/errgroup"
)

// Widget is one dashboard card.
type Widget struct {
	Title string         `json:"title"`
	Count int            `json:"count"`
	Items []any          `json:"items,omitempty"`
	Stats map[string]int `json:"stats,omitempty"`
}

type Widgets struct {
	Role    models.Role       `json:"role"`
	Widgets map[string]Widget `json:"widgets"`
}

const published = "available"

// Widgets builds the dashboard of a user. Admin data is fetched
// concurrently; any failed fetch fails the whole dashboard.
func (s *Service) Widgets(ctx context.Context, role models.Role, userID int64) (*Widgets, error) {
	switch role {
	case models.RoleAdmin:
		return s.adminWidgets(ctx)
	case models.RoleTeacher:
		return s.teacherWidgets(ctx, userID)
	default:
		return s.studentWidgets(ctx, userID)
	}
}

func (s *Service) adminWidgets(ctx context.Context) (*Widgets, error) {
	var (
		courses []canvas.Course
		users   []canvas.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		courses, err = s.canvas.ListAccountCourses(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = s.canvas.ListUsers(gctx, "")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	active := 0
	for _, c := range courses {
		if c.WorkflowState == published {
			active++
		}
	}
	recent := courses
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	return &Widgets{
		Role: models.RoleAdmin,
		Widgets: map[string]Widget{
			"overview": {
				Title: "System Overview",
				Count: len(courses),
				Stats: map[string]int{
					"total_courses":  len(courses),
					"total_users":    len(users),
					"active_courses": active,
				},
			},
			"recent_courses": {Title: "Recently Created Courses", Count: len(recent), Items: courseItems(recent, 5)},
		},
	}, nil
}

func (s *Service) teacherWidgets(ctx context.Context, userID int64) (*Widgets, error) {
	courses, err := s.client(models.RoleTeacher, userID).ListCourses(ctx)
	if err != nil {
		return nil, err
	}
	var unpublished []canvas.Course
	for _, c := range courses {
		if c.WorkflowState != published {
			unpublished = append(unpublished, c)
		}
	}
	actions := make([]any, 0, 3)
	for _, a := range QuickActions(models.RoleTeacher) {
		actions = append(actions, a)
	}
	return &Widgets{
		Role: models.RoleTeacher,
		Widgets: map[string]Widget{
			"my_courses": {Title: "My Courses", Count: len(courses), Items: courseItems(courses, 8)},
			"course_stats": {
				Title: "Course Statistics",
				Count: len(courses),
				Stats: map[string]int{
					"published":   len(courses) - len(unpublished),
					"unpublished": len(unpublished),
				},
			},
			"unpublished_courses": {Title: "Courses Needing Attention", Count: len(unpublished), Items: courseItems(unpublished, 3)},
			"quick_actions":       {Title: "Quick Actions", Count: len(actions), Items: actions},
		},
	}, nil
}

func (s *Service) studentWidgets(ctx context.Context, userID int64) (*Widgets, error) {
	client := s.client(models.RoleStudent, userID)
	courses, err := client.ListCourses(ctx)
	if err != nil {
		return nil, err
	}
	upcoming, err := client.UpcomingAssignments(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	pending := make([]any, 0, 5)
	for i, u := range upcoming {
		if i == 5 {
			break
		}
		pending = append(pending, u)
	}
	return &Widgets{
		Role: models.RoleStudent,
		Widgets: map[string]Widget{
			"enrolled_courses":    {Title: "My Courses", Count: len(courses), Items: courseItems(courses, 5)},
			"pending_assignments": {Title: "Pending Tasks", Count: len(upcoming), Items: pending},
		},
	}, nil
}

func courseItems(courses []canvas.Course, limit int) []any {
	items := make([]any, 0, min(limit, len(courses)))
	for i, c := range courses {
		if i == limit {
			break
		}
		items = append(items, CourseRef{ID: c.ID, Name: c.Name, Code: c.CourseCode})
	}
	return items
}
