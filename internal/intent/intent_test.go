package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/RichardoC/lms-chat/internal/apperr"
	"github.com/RichardoC/lms-chat/internal/llm/llmtest"
	"github.com/RichardoC/lms-chat/internal/models"
	"github.com/RichardoC/lms-chat/internal/tools"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var catalog = tools.DefaultCatalog()

func query(role models.Role, input string, history ...models.Message) Query {
	return Query{
		Input:   input,
		History: history,
		Role:    role,
		Tools:   catalog.Selectable(tools.Permitted(role)),
	}
}

func userSaid(content string) models.Message {
	return models.Message{Role: models.RoleUser, Content: content}
}

func TestPatternSelector(t *testing.T) {
	cases := []struct {
		name     string
		q        Query
		decision Decision
		tool     string
		args     tools.Args
		missing  []string
	}{
		{
			name:     "student lists courses",
			q:        query(models.RoleStudent, "List my courses"),
			decision: UseTool,
			tool:     tools.ListCourses,
			args:     tools.Args{},
		},
		{
			name:     "assignment without course asks",
			q:        query(models.RoleTeacher, "Create an assignment"),
			decision: NeedsClarification,
			tool:     tools.CreateAssignment,
			args:     tools.Args{},
			missing:  []string{"course_id", "name"},
		},
		{
			name:     "assignment with everything",
			q:        query(models.RoleTeacher, "Create an assignment called Lab Report in course 12 worth 20 points"),
			decision: UseTool,
			tool:     tools.CreateAssignment,
			args:     tools.Args{"course_id": "12", "name": "Lab Report", "points": "20"},
		},
		{
			name:     "course id reused from history",
			q:        query(models.RoleTeacher, "list the assignments", userSaid("Show modules for course 42")),
			decision: UseTool,
			tool:     tools.ListAssignments,
			args:     tools.Args{"course_id": "42"},
		},
		{
			name:     "upcoming work",
			q:        query(models.RoleStudent, "What's due this week?"),
			decision: UseTool,
			tool:     tools.ListUpcomingAssignments,
			args:     tools.Args{},
		},
		{
			name:     "modules of a course",
			q:        query(models.RoleStudent, "How many modules are in course 3?"),
			decision: UseTool,
			tool:     tools.ListModules,
			args:     tools.Args{"course_id": "3"},
		},
		{
			name:     "small talk",
			q:        query(models.RoleStudent, "hello, how are you today?"),
			decision: NoTool,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := NewPatternSelector().Select(context.Background(), tc.q)
			require.NoError(t, err)

			assert.Equal(t, tc.decision, out.Decision)
			assert.Equal(t, tc.tool, out.Tool)
			if tc.args != nil {
				assert.Empty(t, cmp.Diff(tc.args, out.Args))
			}
			assert.Equal(t, tc.missing, out.Missing)
		})
	}
}

func TestPatternSelectorNeverPicksMutatingToolForStudentReads(t *testing.T) {
	for _, input := range []string{"List my courses", "show my grades in course 4", "what quizzes are in course 2"} {
		out, err := NewPatternSelector().Select(context.Background(), query(models.RoleStudent, input))
		require.NoError(t, err)
		def, ok := catalog.Lookup(out.Tool)
		require.True(t, ok, input)
		assert.False(t, def.Mutating, input)
	}
}

func TestPatternSelectorStopsAfterOneResult(t *testing.T) {
	q := query(models.RoleStudent, "List my courses")
	q.Results = []tools.Result{{Call: tools.Call{Name: tools.ListCourses}}}

	out, err := NewPatternSelector().Select(context.Background(), q)

	require.NoError(t, err)
	assert.Equal(t, NoTool, out.Decision)
}

func TestPermissionGuard(t *testing.T) {
	guard := NewPermissionGuard(catalog)

	tool, ok := guard.Check("Create a course", models.RoleStudent)
	assert.False(t, ok)
	assert.Equal(t, tools.CreateCourse, tool)

	_, ok = guard.Check("Create a course", models.RoleTeacher)
	assert.True(t, ok)

	_, ok = guard.Check("List my courses", models.RoleStudent)
	assert.True(t, ok)

	tool, ok = guard.Check("create a user named Jane Doe", models.RoleTeacher)
	assert.False(t, ok)
	assert.Equal(t, tools.CreateUser, tool)

	_, ok = guard.Check("what is photosynthesis?", models.RoleStudent)
	assert.True(t, ok)
}

func TestExtract(t *testing.T) {
	got := Extract(`Enroll student 55 as a TA in course #9, email jane.doe@uni.edu and call it "Week One"`)

	want := map[string]string{
		"course_id": "9",
		"user_id":   "55",
		"role":      "TA",
		"email":     "jane.doe@uni.edu",
		"name":      "Week One",
	}
	assert.Empty(t, cmp.Diff(want, got))

	assert.Equal(t, "B+", Extract("grade it as B+ please")["grade"])
	assert.Equal(t, "6", Extract("plan with 6 hours per week")["study_hours_per_week"])
	assert.Equal(t, "77", Extract("Created course: Biology (ID: 77)")["course_id"])
	assert.NotContains(t, Extract("What's due? I'm behind")["name"], "due")
}

func TestResume(t *testing.T) {
	def, _ := catalog.Lookup(tools.CreateAssignment)

	out := Resume(def, tools.Args{}, "course 12", nil)
	assert.Equal(t, NeedsClarification, out.Decision)
	assert.Equal(t, []string{"name"}, out.Missing)

	out = Resume(def, out.Args, "Lab Report 1", nil)
	assert.Equal(t, UseTool, out.Decision)
	assert.Equal(t, tools.Args{"course_id": "12", "name": "Lab Report 1"}, out.Args)
}

func TestLLMSelector(t *testing.T) {
	cases := []struct {
		name     string
		reply    string
		role     models.Role
		decision Decision
		tool     string
		draft    string
		kind     apperr.Kind
	}{
		{
			name:     "tool call",
			reply:    `{"action":"tool","tool":"list_modules","arguments":{"course_id":3},"confidence":0.9}`,
			role:     models.RoleStudent,
			decision: UseTool,
			tool:     tools.ListModules,
		},
		{
			name:     "fenced json with prose",
			reply:    "Sure!\n```json\n{\"action\":\"tool\",\"tool\":\"list_courses\",\"arguments\":{},\"confidence\":0.8}\n```",
			role:     models.RoleStudent,
			decision: UseTool,
			tool:     tools.ListCourses,
		},
		{
			name:     "missing argument",
			reply:    `{"action":"tool","tool":"create_assignment","arguments":{"name":"Essay"},"confidence":0.95}`,
			role:     models.RoleTeacher,
			decision: NeedsClarification,
			tool:     tools.CreateAssignment,
		},
		{
			name:     "below threshold",
			reply:    `{"action":"tool","tool":"list_courses","arguments":{},"confidence":0.5,"content":"Maybe?"}`,
			role:     models.RoleStudent,
			decision: NoTool,
			draft:    "Maybe?",
		},
		{
			name:     "plain reply",
			reply:    `{"action":"respond","content":"Hi there!","confidence":1}`,
			role:     models.RoleStudent,
			decision: NoTool,
			draft:    "Hi there!",
		},
		{
			name:  "tool outside the role",
			reply: `{"action":"tool","tool":"create_course","arguments":{"name":"Bio"},"confidence":0.99}`,
			role:  models.RoleStudent,
			kind:  apperr.KindValidation,
		},
		{
			name:  "not json",
			reply: "I think you want your courses.",
			role:  models.RoleStudent,
			kind:  apperr.KindUpstreamError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := &llmtest.Backend{Replies: []llmtest.Reply{{Text: tc.reply}}}
			sel := NewLLMSelector(backend, 0, 0.75, nil)

			out, err := sel.Select(context.Background(), query(tc.role, "whatever"))

			if tc.kind != "" {
				require.Error(t, err)
				assert.Equal(t, tc.kind, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.decision, out.Decision)
			assert.Equal(t, tc.tool, out.Tool)
			assert.Equal(t, tc.draft, out.Draft)
		})
	}
}

func TestLLMSelectorPromptListsOnlyPermittedTools(t *testing.T) {
	backend := &llmtest.Backend{Replies: []llmtest.Reply{{Text: `{"action":"respond","content":"ok"}`}}}
	sel := NewLLMSelector(backend, 0, 0.75, nil)

	_, err := sel.Select(context.Background(), query(models.RoleStudent, "hi", userSaid("earlier")))
	require.NoError(t, err)

	msgs := backend.Last()
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[0].Content, tools.ListCourses)
	assert.NotContains(t, msgs[0].Content, tools.CreateCourse)
	assert.NotContains(t, msgs[0].Content, tools.SubmitAssignmentFile)
	assert.Equal(t, "hi", msgs[2].Content)
}

type failing struct{ err error }

func (f failing) Select(context.Context, Query) (Outcome, error) { return Outcome{}, f.err }

func TestWithFallback(t *testing.T) {
	q := query(models.RoleStudent, "List my courses")
	timeout := apperr.Wrap(apperr.KindUpstreamTimeout, context.DeadlineExceeded, "slow")

	out, err := WithFallback(failing{timeout}, NewPatternSelector(), nil).Select(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, tools.ListCourses, out.Tool)
	assert.Equal(t, "pattern", out.Source)

	out, err = WithFallback(failing{timeout}, failing{errors.New("down")}, nil).Select(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, NoTool, out.Decision)
}
