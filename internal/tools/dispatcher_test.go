package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RichardoC/lms-chat/internal/apperr"
	"github.com/RichardoC/lms-chat/internal/canvas"
	"github.com/RichardoC/lms-chat/internal/config"
	"github.com/RichardoC/lms-chat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCanvas records every request it receives.
type fakeCanvas struct {
	mu       sync.Mutex
	requests []string
	handler  http.HandlerFunc
}

func (f *fakeCanvas) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.mu.Unlock()
	f.handler(w, r)
}

func (f *fakeCanvas) methods(method string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, req := range f.requests {
		if strings.HasPrefix(req, method+" ") {
			out = append(out, req)
		}
	}
	return out
}

func newDispatcher(t *testing.T, timeout time.Duration, h http.HandlerFunc) (*Dispatcher, *fakeCanvas) {
	t.Helper()
	fc := &fakeCanvas{handler: h}
	srv := httptest.NewServer(fc)
	t.Cleanup(srv.Close)
	client := canvas.New(config.CanvasConfig{URL: srv.URL, Token: "t", AccountID: 1, Timeout: timeout}, nil)
	return NewDispatcher(DefaultCatalog(), client, nil, WithUploadDir(t.TempDir())), fc
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

var (
	student = Caller{Role: models.RoleStudent, CanvasUserID: 11}
	teacher = Caller{Role: models.RoleTeacher, CanvasUserID: 22}
	admin   = Caller{Role: models.RoleAdmin, CanvasUserID: 1}
)

func TestStudentCannotCreateCourse(t *testing.T) {
	d, fc := newDispatcher(t, time.Second, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": 1})
	})

	res := d.Dispatch(context.Background(), student, Call{Name: CreateCourse, Args: Args{"name": "Biology"}})

	require.False(t, res.OK())
	assert.Equal(t, apperr.KindPermissionDenied, res.Kind)
	assert.Equal(t, "Your role (student) is not allowed to create courses. This action requires teacher or admin privileges.", res.Message)
	assert.Empty(t, fc.methods(http.MethodPost))
	assert.Zero(t, res.Attempts)
}

func TestNoRoleReachesToolsOutsideItsSet(t *testing.T) {
	d, fc := newDispatcher(t, time.Second, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{})
	})
	roles := []models.Role{models.RoleStudent, models.RoleTeacher, models.RoleAdmin, models.Role("guest")}

	for _, role := range roles {
		allowed := Permitted(role)
		for _, def := range d.Catalog().All() {
			if allowed.Has(def.Name) {
				continue
			}
			res := d.Dispatch(context.Background(), Caller{Role: role, CanvasUserID: 5}, Call{Name: def.Name, Args: Args{}})
			assert.Equal(t, apperr.KindPermissionDenied, res.Kind, "%s -> %s", role, def.Name)
		}
	}
	assert.Empty(t, fc.requests)
}

func TestPermissionSetsNest(t *testing.T) {
	for _, name := range Permitted(models.RoleTeacher).Names() {
		assert.True(t, Permitted(models.RoleAdmin).Has(name), name)
	}
	assert.False(t, Permitted(models.RoleStudent).Has(CreateCourse))
	assert.False(t, Permitted(models.RoleTeacher).Has(CreateUser))
	assert.Equal(t, Permitted(models.RoleStudent).Names(), Permitted(models.Role("")).Names())

	catalog := DefaultCatalog()
	for _, role := range []models.Role{models.RoleStudent, models.RoleTeacher, models.RoleAdmin} {
		for _, name := range Permitted(role).Names() {
			_, ok := catalog.Lookup(name)
			assert.True(t, ok, "%s grants unknown tool %s", role, name)
		}
	}
}

func TestMissingArguments(t *testing.T) {
	d, fc := newDispatcher(t, time.Second, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{})
	})

	res := d.Dispatch(context.Background(), teacher, Call{Name: CreateAssignment, Args: Args{"course_id": "", "points": 10}})

	assert.Equal(t, apperr.KindMissingArgument, res.Kind)
	assert.Equal(t, []string{"course_id", "name"}, res.Missing)
	assert.Empty(t, fc.requests)
}

func TestUnknownToolIsValidationError(t *testing.T) {
	d, _ := newDispatcher(t, time.Second, nil)

	res := d.Dispatch(context.Background(), admin, Call{Name: "drop_database"})

	assert.Equal(t, apperr.KindValidation, res.Kind)
}

func TestInvalidArgumentType(t *testing.T) {
	d, fc := newDispatcher(t, time.Second, nil)

	res := d.Dispatch(context.Background(), teacher, Call{Name: EnrollUser, Args: Args{"course_id": 3, "user_id": 9, "role": "Principal"}})

	assert.Equal(t, apperr.KindValidation, res.Kind)
	assert.Empty(t, fc.requests)
}

func TestReadIsRetriedOnceOnTimeout(t *testing.T) {
	var calls atomic.Int32
	d, _ := newDispatcher(t, 100*time.Millisecond, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			time.Sleep(300 * time.Millisecond)
		}
		writeJSON(w, []map[string]any{{"id": 4, "name": "Week 1"}})
	})

	res := d.Dispatch(context.Background(), student, Call{Name: ListModules, Args: Args{"course_id": 3}})

	require.True(t, res.OK(), res.Message)
	assert.Equal(t, 2, res.Attempts)
	assert.Len(t, res.Data, 1)
}

func TestReadGivesUpAfterSecondTimeout(t *testing.T) {
	var calls atomic.Int32
	d, _ := newDispatcher(t, 50*time.Millisecond, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(200 * time.Millisecond)
	})

	res := d.Dispatch(context.Background(), student, Call{Name: ListModules, Args: Args{"course_id": 3}})

	assert.Equal(t, apperr.KindUpstreamTimeout, res.Kind)
	assert.Equal(t, 2, res.Attempts)
	assert.EqualValues(t, 2, calls.Load())
}

func TestMutationIsNeverRetried(t *testing.T) {
	var calls atomic.Int32
	d, _ := newDispatcher(t, 50*time.Millisecond, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(200 * time.Millisecond)
	})

	res := d.Dispatch(context.Background(), teacher, Call{Name: CreateModule, Args: Args{"course_id": 3, "name": "Week 2"}})

	assert.Equal(t, apperr.KindUpstreamTimeout, res.Kind)
	assert.Equal(t, 1, res.Attempts)
	assert.EqualValues(t, 1, calls.Load())
}

func TestPanickingToolIsReported(t *testing.T) {
	catalog, err := NewCatalog(Definition{
		Name:   ListCourses,
		Params: Schema{Properties: map[string]Property{}},
		Run: func(context.Context, Env, Args) (any, error) {
			panic("nil map")
		},
	})
	require.NoError(t, err)
	d := NewDispatcher(catalog, canvas.New(config.CanvasConfig{}, nil), nil)

	res := d.Dispatch(context.Background(), student, Call{Name: ListCourses})

	assert.Equal(t, apperr.KindUpstreamError, res.Kind)
	assert.NotContains(t, res.Message, "nil map")
}

func TestCreateCourseEnrollsTeacher(t *testing.T) {
	d, fc := newDispatcher(t, time.Second, func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		switch r.URL.Path {
		case "/api/v1/accounts/1/courses":
			assert.Equal(t, "IB101", r.PostForm.Get("course[course_code]"))
			writeJSON(w, map[string]any{"id": 77, "name": r.PostForm.Get("course[name]"), "course_code": "IB101"})
		case "/api/v1/courses/77/enrollments":
			assert.Equal(t, "22", r.PostForm.Get("enrollment[user_id]"))
			assert.Equal(t, "TeacherEnrollment", r.PostForm.Get("enrollment[type]"))
			writeJSON(w, map[string]any{"id": 1, "course_id": 77, "user_id": 22})
		default:
			http.NotFound(w, r)
		}
	})

	res := d.Dispatch(context.Background(), teacher, Call{Name: CreateCourse, Args: Args{"name": "Intro Biology 101"}})

	require.True(t, res.OK(), res.Message)
	created := res.Data.(CourseCreated)
	assert.Equal(t, int64(77), created.Course.ID)
	assert.True(t, created.TeacherEnrolled)
	assert.Len(t, fc.methods(http.MethodPost), 2)
}

func TestCreateCourseSurvivesFailedEnrollment(t *testing.T) {
	d, _ := newDispatcher(t, time.Second, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/enrollments") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"id": 78, "name": "Chemistry"})
	})

	res := d.Dispatch(context.Background(), teacher, Call{Name: CreateCourse, Args: Args{"name": "Chemistry"}})

	require.True(t, res.OK(), res.Message)
	assert.False(t, res.Data.(CourseCreated).TeacherEnrolled)
}

func TestStudentReadsMasquerade(t *testing.T) {
	var asUser atomic.Value
	d, _ := newDispatcher(t, time.Second, func(w http.ResponseWriter, r *http.Request) {
		asUser.Store(r.URL.Query().Get("as_user_id"))
		writeJSON(w, []map[string]any{})
	})

	res := d.Dispatch(context.Background(), student, Call{Name: ListAssignments, Args: Args{"course_id": "3"}})

	require.True(t, res.OK(), res.Message)
	assert.Equal(t, "11", asUser.Load())
	assert.Equal(t, int64(3), res.Call.Args["course_id"])
}

func TestSubmitAssignmentFileRejectsPathsOutsideUploadDir(t *testing.T) {
	d, fc := newDispatcher(t, time.Second, nil)
	outside := filepath.Join(t.TempDir(), "essay.pdf")
	require.NoError(t, os.WriteFile(outside, []byte("%PDF"), 0o600))

	res := d.Dispatch(context.Background(), student, Call{Name: SubmitAssignmentFile, Args: Args{
		"course_id": 3, "assignment_id": 4, "file_path": outside,
	}})

	assert.Equal(t, apperr.KindValidation, res.Kind)
	assert.Empty(t, fc.requests)
}

func TestLearningPlan(t *testing.T) {
	d, _ := newDispatcher(t, time.Second, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{{"id": 1, "name": "Cells"}, {"id": 2, "name": "Genetics"}})
	})
	d.now = func() time.Time { return time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC) }

	res := d.Dispatch(context.Background(), student, Call{Name: GenerateLearningPlan, Args: Args{"course_id": 3, "study_hours_per_week": 6}})

	require.True(t, res.OK(), res.Message)
	plan := res.Data.(LearningPlan)
	require.Len(t, plan.Weeks, 2)
	assert.Equal(t, int64(3), plan.Weeks[0].HoursAllocated)
	assert.Equal(t, "2025-03-10", plan.Weeks[0].Deadline)
	assert.Equal(t, "Genetics", plan.Weeks[1].Module)
}

func TestKeyCoercesArguments(t *testing.T) {
	d, _ := newDispatcher(t, time.Second, nil)

	key := d.Key(Call{Name: CreateAssignment, Args: Args{"course_id": float64(3), "name": "Essay"}})

	assert.Equal(t, key, d.Key(Call{Name: CreateAssignment, Args: Args{"course_id": "3", "name": "Essay"}}))
	assert.Equal(t, key, d.Key(Call{Name: CreateAssignment, Args: Args{"course_id": 3, "name": "Essay", "unknown": true}}))
	assert.NotEqual(t, key, d.Key(Call{Name: CreateAssignment, Args: Args{"course_id": 4, "name": "Essay"}}))
	assert.NotEqual(t,
		d.Key(Call{Name: CreateAssignment, Args: Args{"course_id": "abc", "name": "Essay"}}),
		d.Key(Call{Name: CreateAssignment, Args: Args{"course_id": "xyz", "name": "Essay"}}))
}
