package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/RichardoC/lms-chat/internal/canvas"
	"github.com/RichardoC/lms-chat/internal/llm/llmtest"
	"github.com/RichardoC/lms-chat/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var catalog = tools.DefaultCatalog()

func coursesTrace() *Trace {
	return &Trace{
		Status:     StatusCompleted,
		Iterations: 2,
		Results: []tools.Result{{
			Call: tools.Call{Name: tools.ListCourses, Args: tools.Args{}},
			Data: []canvas.Course{
				{ID: 3, Name: "Biology", CourseCode: "BIO101"},
				{ID: 4, Name: "Chemistry", CourseCode: "CHEM1"},
			},
		}},
	}
}

func TestFormatWithoutBackendUsesTemplate(t *testing.T) {
	f := NewFormatter(nil, catalog, time.Second, nil)

	reply := f.Format(context.Background(), Turn{Input: "List my courses"}, coursesTrace())

	assert.Equal(t, "Found 2 courses:\n• Biology (BIO101)\n• Chemistry (CHEM1)", reply.Content)
	assert.Equal(t, BackendTemplate, reply.Backend)
	assert.True(t, reply.ToolUsed)
	assert.Equal(t, []string{tools.ListCourses}, reply.Tools)
	assert.Equal(t, 2, reply.Iterations)
}

func TestFormatRetriesSummaryOnceOnTimeout(t *testing.T) {
	backend := &llmtest.Backend{Replies: []llmtest.Reply{
		{Err: context.DeadlineExceeded},
		{Text: "You are enrolled in Biology and Chemistry."},
	}}
	f := NewFormatter(backend, catalog, time.Second, nil)

	reply := f.Format(context.Background(), Turn{Input: "List my courses"}, coursesTrace())

	assert.Equal(t, "You are enrolled in Biology and Chemistry.", reply.Content)
	assert.Equal(t, "fake", reply.Backend)
	assert.Equal(t, 15, reply.Usage.Total())
	assert.Equal(t, 2, backend.Calls())
}

func TestFormatFallsBackWhenSummaryFails(t *testing.T) {
	backend := &llmtest.Backend{Replies: []llmtest.Reply{{Err: errors.New("bad gateway")}}}
	f := NewFormatter(backend, catalog, time.Second, nil)

	reply := f.Format(context.Background(), Turn{Input: "List my courses"}, coursesTrace())

	assert.Equal(t, 1, backend.Calls())
	assert.Equal(t, BackendTemplate, reply.Backend)
	assert.Contains(t, reply.Content, "Found 2 courses:")
}

func TestFormatClarificationAsksOneQuestion(t *testing.T) {
	f := NewFormatter(nil, catalog, time.Second, nil)
	trace := &Trace{
		Status:  StatusNeedsClarification,
		Clarify: &Clarification{Tool: tools.CreateAssignment, Args: tools.Args{}, Missing: []string{"course_id", "name"}},
	}

	reply := f.Format(context.Background(), Turn{}, trace)

	assert.Equal(t, "To create an assignment in a course, I need a few details. What are the course ID and name?", reply.Content)
	assert.Equal(t, 1, strings.Count(reply.Content, "?"))
	assert.Equal(t, tools.CreateAssignment, reply.PendingTool)
	assert.False(t, reply.ToolUsed)
}

func TestFormatWithoutResults(t *testing.T) {
	t.Run("selector draft", func(t *testing.T) {
		backend := &llmtest.Backend{}
		f := NewFormatter(backend, catalog, time.Second, nil)

		reply := f.Format(context.Background(), Turn{Input: "hi"}, &Trace{Status: StatusCompleted, Draft: "Hello! How can I help?"})

		assert.Equal(t, "Hello! How can I help?", reply.Content)
		assert.Zero(t, backend.Calls())
	})

	t.Run("direct answer", func(t *testing.T) {
		backend := &llmtest.Backend{Replies: []llmtest.Reply{{Text: "Hi there."}}}
		f := NewFormatter(backend, catalog, time.Second, nil)

		reply := f.Format(context.Background(), Turn{Input: "hi"}, &Trace{Status: StatusCompleted})

		assert.Equal(t, "Hi there.", reply.Content)
		require.Len(t, backend.Last(), 2)
	})

	t.Run("apology", func(t *testing.T) {
		backend := &llmtest.Backend{Replies: []llmtest.Reply{{Err: errors.New("down")}}}
		f := NewFormatter(backend, catalog, time.Second, nil)

		reply := f.Format(context.Background(), Turn{Input: "hi"}, &Trace{Status: StatusCompleted})

		assert.Equal(t, apology, reply.Content)
	})
}

func TestFormatAbortedKeepsPartialAnswer(t *testing.T) {
	f := NewFormatter(nil, catalog, time.Second, nil)
	trace := coursesTrace()
	trace.Status = StatusAborted

	reply := f.Format(context.Background(), Turn{}, trace)

	assert.Contains(t, reply.Content, "Found 2 courses:")
	assert.Contains(t, reply.Content, abortNotice)
}

func TestSummarizeOne(t *testing.T) {
	cases := []struct {
		name   string
		result tools.Result
		want   string
	}{
		{
			name: "created module",
			result: tools.Result{
				Call:     tools.Call{Name: tools.CreateModule},
				Mutating: true,
				Data:     &canvas.Module{ID: 9, Name: "Week 1"},
			},
			want: "Created module: Week 1 (ID: 9)",
		},
		{
			name: "created course",
			result: tools.Result{
				Call:     tools.Call{Name: tools.CreateCourse},
				Mutating: true,
				Data:     tools.CourseCreated{Course: &canvas.Course{ID: 1234567, Name: "Physics"}, TeacherEnrolled: true},
			},
			want: "Created course: Physics (ID: 1234567)\nYou have been enrolled as the teacher.",
		},
		{
			name: "empty list",
			result: tools.Result{
				Call: tools.Call{Name: tools.ListModules},
				Data: []canvas.Module{},
			},
			want: "No modules found.",
		},
		{
			name: "generic list",
			result: tools.Result{
				Call: tools.Call{Name: tools.ListQuizzes},
				Data: []canvas.Quiz{{ID: 5, Title: "Quiz 1"}},
			},
			want: "Found 1 quizzes:\n• Quiz 1 (ID: 5)",
		},
		{
			name: "single read",
			result: tools.Result{
				Call: tools.Call{Name: tools.GetAssignment},
				Data: &canvas.Assignment{ID: 8, Name: "Essay"},
			},
			want: "Assignment: Essay (ID: 8)",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, summarizeOne(tc.result))
		})
	}
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "course ID", label("course_id"))
	assert.Equal(t, "study hours per week", label("study_hours_per_week"))
	assert.Equal(t, "a, b and c", joinAnd([]string{"a", "b", "c"}))
}
