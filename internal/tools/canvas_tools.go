package tools

import (
	"context"
	"strings"
	"unicode"

	"github.com/RichardoC/lms-chat/internal/canvas"
	"github.com/RichardoC/lms-chat/internal/models"
	"go.uber.org/zap"
)

func integer(desc string) Property { return Property{Type: "integer", Description: desc} }
func text(desc string) Property    { return Property{Type: "string", Description: desc} }
func number(desc string) Property  { return Property{Type: "number", Description: desc} }

var (
	courseID     = integer("Canvas course ID")
	moduleID     = integer("Canvas module ID")
	assignmentID = integer("Canvas assignment ID")
	userID       = integer("Canvas user ID")
)

var (
	readVerbs   = []string{"list", "show", "get", "view", "see", "display", "what", "which", "find", "check", "give", "tell"}
	createVerbs = []string{"create", "make", "add", "new", "build", "set", "setup", "start", "write"}
)

// DefaultCatalog returns the Canvas operations in selection priority order.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(canvasTools()...)
	if err != nil {
		panic(err)
	}
	return c
}

func canvasTools() []Definition {
	return []Definition{
		{
			Name:        ListUpcomingAssignments,
			Description: "List upcoming assignment deadlines across the user's courses",
			Params:      Schema{Properties: map[string]Property{}},
			Hints: Hints{
				Verbs: append(readVerbs, "upcoming"),
				Nouns: []string{"due", "deadline", "upcoming", "todo"},
				Cues:  []string{"due soon", "coming up", "to do", "what's due", "whats due", "due this week"},
			},
			Run: func(ctx context.Context, env Env, _ Args) (any, error) {
				return env.User.UpcomingAssignments(ctx, env.Now())
			},
		},
		{
			Name:        GetCourseProgress,
			Description: "Show the user's progress (submitted, graded, completion rate) in a course",
			Params: Schema{
				Properties: map[string]Property{"course_id": courseID},
				Required:   []string{"course_id"},
			},
			Hints: Hints{
				Verbs: append(readVerbs, "track", "how"),
				Nouns: []string{"progress", "completion", "standing"},
				Cues:  []string{"how am i doing", "my progress"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				id, _ := a.Int64("course_id")
				return env.User.CourseProgress(ctx, id, env.Caller.CanvasUserID)
			},
		},
		{
			Name:        GenerateLearningPlan,
			Description: "Build a weekly study plan from a course's modules",
			Params: Schema{
				Properties: map[string]Property{
					"course_id":            courseID,
					"study_hours_per_week": integer("Hours available per week (default 10)"),
				},
				Required: []string{"course_id"},
			},
			Hints: Hints{
				Verbs: append(createVerbs, "plan", "generate"),
				Nouns: []string{"plan", "schedule"},
				Cues:  []string{"study plan", "learning plan", "study schedule"},
			},
			Run: runLearningPlan,
		},
		{
			Name:        GradeSubmission,
			Description: "Grade a student's submission for an assignment",
			Mutating:    true,
			Params: Schema{
				Properties: map[string]Property{
					"course_id":     courseID,
					"assignment_id": assignmentID,
					"user_id":       integer("Canvas user ID of the student"),
					"grade":         text("Grade to post, e.g. 95, A-, pass"),
					"comment":       text("Optional comment for the student"),
				},
				Required: []string{"course_id", "assignment_id", "user_id", "grade"},
			},
			Hints: Hints{
				Verbs: []string{"grade", "score", "mark", "assign"},
				Nouns: []string{"submission", "student", "grade"},
				Cues:  []string{"give a grade", "grade student"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				aid, _ := a.Int64("assignment_id")
				uid, _ := a.Int64("user_id")
				return env.User.GradeSubmission(ctx, cid, aid, uid, a.String("grade"), a.String("comment"))
			},
		},
		{
			Name:        GetGrades,
			Description: "Show the user's grades and scores in a course",
			Params: Schema{
				Properties: map[string]Property{"course_id": courseID},
				Required:   []string{"course_id"},
			},
			Hints: Hints{
				Verbs: readVerbs,
				Nouns: []string{"grade", "score", "marks", "gradebook"},
				Cues:  []string{"my grade", "my score"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				id, _ := a.Int64("course_id")
				return env.User.ListSubmissions(ctx, id, env.Caller.CanvasUserID)
			},
		},
		{
			Name:        ListSubmissions,
			Description: "List student submissions in a course",
			Params: Schema{
				Properties: map[string]Property{"course_id": courseID},
				Required:   []string{"course_id"},
			},
			Hints: Hints{
				Verbs: readVerbs,
				Nouns: []string{"submission", "submitted"},
				Cues:  []string{"who submitted", "all submissions"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				id, _ := a.Int64("course_id")
				return env.User.ListSubmissions(ctx, id, 0)
			},
		},
		{
			Name:        SubmitAssignment,
			Description: "Submit a text answer for an assignment",
			Mutating:    true,
			Params: Schema{
				Properties: map[string]Property{
					"course_id":     courseID,
					"assignment_id": assignmentID,
					"body":          text("Submission text"),
					"comment":       text("Optional comment"),
				},
				Required: []string{"course_id", "assignment_id", "body"},
			},
			Hints: Hints{
				Verbs: []string{"submit", "turn", "hand"},
				Nouns: []string{"assignment", "homework", "answer", "submission"},
				Cues:  []string{"turn in", "hand in"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				aid, _ := a.Int64("assignment_id")
				return env.User.SubmitAssignment(ctx, cid, aid, canvas.SubmissionParams{
					Type:    "online_text_entry",
					Body:    a.String("body"),
					Comment: a.String("comment"),
				})
			},
		},
		{
			Name:        AddModuleItem,
			Description: "Add an existing assignment, page, quiz or file to a module",
			Mutating:    true,
			Params: Schema{
				Properties: map[string]Property{
					"course_id":  courseID,
					"module_id":  moduleID,
					"item_type":  {Type: "string", Description: "Kind of item", Enum: []string{"Assignment", "Page", "Quiz", "File", "SubHeader"}},
					"content_id": integer("ID of the assignment, quiz or file"),
					"page_url":   text("URL slug of the page"),
					"title":      text("Title shown in the module"),
				},
				Required: []string{"course_id", "module_id", "item_type"},
			},
			Hints: Hints{
				Verbs: []string{"add", "put", "attach", "link", "insert"},
				Nouns: []string{"item"},
				Cues:  []string{"to module", "to the module", "into module"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				mid, _ := a.Int64("module_id")
				content, _ := a.Int64("content_id")
				return env.User.AddModuleItem(ctx, cid, mid, canvas.ModuleItemParams{
					Type:      canonicalItemType(a.String("item_type")),
					ContentID: content,
					PageURL:   a.String("page_url"),
					Title:     a.String("title"),
				})
			},
		},
		{
			Name:        ListModuleItems,
			Description: "List the items inside a module",
			Params: Schema{
				Properties: map[string]Property{"course_id": courseID, "module_id": moduleID},
				Required:   []string{"course_id", "module_id"},
			},
			Hints: Hints{
				Verbs: readVerbs,
				Nouns: []string{"item", "content", "inside"},
				Cues:  []string{"in module", "in the module", "module items"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				mid, _ := a.Int64("module_id")
				return env.User.ListModuleItems(ctx, cid, mid)
			},
		},
		{
			Name:        PublishModule,
			Description: "Publish a module",
			Mutating:    true,
			Params: Schema{
				Properties: map[string]Property{"course_id": courseID, "module_id": moduleID},
				Required:   []string{"course_id", "module_id"},
			},
			Hints: Hints{
				Verbs: []string{"publish", "release"},
				Nouns: []string{"module", "unit", "week"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				mid, _ := a.Int64("module_id")
				return env.User.PublishModule(ctx, cid, mid)
			},
		},
		{
			Name:        CreateModule,
			Description: "Create a module in a course",
			Mutating:    true,
			Params: Schema{
				Properties: map[string]Property{
					"course_id": courseID,
					"name":      text("Module name"),
					"position":  integer("Position in the course (optional)"),
				},
				Required: []string{"course_id", "name"},
			},
			Hints: Hints{
				Verbs: createVerbs,
				Nouns: []string{"module", "unit", "week"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				return env.User.CreateModule(ctx, cid, a.String("name"), int(a.IntOr("position", 0)))
			},
		},
		{
			Name:        ListModules,
			Description: "List the modules of a course",
			Params: Schema{
				Properties: map[string]Property{"course_id": courseID},
				Required:   []string{"course_id"},
			},
			Hints: Hints{
				Verbs: readVerbs,
				Nouns: []string{"module", "unit", "week"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				return env.User.ListModules(ctx, cid)
			},
		},
		{
			Name:        DeleteAssignment,
			Description: "Delete an assignment",
			Mutating:    true,
			Params: Schema{
				Properties: map[string]Property{"course_id": courseID, "assignment_id": assignmentID},
				Required:   []string{"course_id", "assignment_id"},
			},
			Hints: Hints{
				Verbs: []string{"delete", "remove", "drop"},
				Nouns: []string{"assignment", "homework"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				aid, _ := a.Int64("assignment_id")
				return env.User.DeleteAssignment(ctx, cid, aid)
			},
		},
		{
			Name:        CreateAssignment,
			Description: "Create an assignment in a course",
			Mutating:    true,
			Params: Schema{
				Properties: map[string]Property{
					"course_id":   courseID,
					"name":        text("Assignment name"),
					"points":      number("Points possible (default 100)"),
					"description": text("Assignment description"),
					"due_at":      text("Due date, ISO 8601"),
				},
				Required: []string{"course_id", "name"},
			},
			Hints: Hints{
				Verbs: createVerbs,
				Nouns: []string{"assignment", "homework", "task", "essay"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				return env.User.CreateAssignment(ctx, cid, canvas.AssignmentParams{
					Name:           a.String("name"),
					Description:    a.String("description"),
					PointsPossible: a.FloatOr("points", 100),
					DueAt:          a.String("due_at"),
				})
			},
		},
		{
			Name:        GetAssignment,
			Description: "Show the details of one assignment",
			Params: Schema{
				Properties: map[string]Property{"course_id": courseID, "assignment_id": assignmentID},
				Required:   []string{"course_id", "assignment_id"},
			},
			Hints: Hints{
				Verbs: readVerbs,
				Nouns: []string{"assignment", "homework"},
				Cues:  []string{"assignment details"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				aid, _ := a.Int64("assignment_id")
				return env.User.GetAssignment(ctx, cid, aid)
			},
		},
		{
			Name:        ListAssignments,
			Description: "List the assignments of a course",
			Params: Schema{
				Properties: map[string]Property{"course_id": courseID},
				Required:   []string{"course_id"},
			},
			Hints: Hints{
				Verbs: readVerbs,
				Nouns: []string{"assignment", "homework", "task"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				return env.User.ListAssignments(ctx, cid)
			},
		},
		{
			Name:        CreateAnnouncement,
			Description: "Post an announcement to a course",
			Mutating:    true,
			Params: Schema{
				Properties: map[string]Property{
					"course_id": courseID,
					"title":     text("Announcement title"),
					"message":   text("Announcement body"),
				},
				Required: []string{"course_id", "title", "message"},
			},
			Hints: Hints{
				Verbs: append(createVerbs, "post", "announce", "send"),
				Nouns: []string{"announcement", "announce"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				return env.User.CreateAnnouncement(ctx, cid, a.String("title"), a.String("message"))
			},
		},
		{
			Name:        ListAnnouncements,
			Description: "List a course's announcements",
			Params: Schema{
				Properties: map[string]Property{"course_id": courseID},
				Required:   []string{"course_id"},
			},
			Hints: Hints{
				Verbs: readVerbs,
				Nouns: []string{"announcement", "news"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				return env.User.ListAnnouncements(ctx, cid)
			},
		},
		{
			Name:        PostDiscussionReply,
			Description: "Reply to a discussion topic",
			Mutating:    true,
			Params: Schema{
				Properties: map[string]Property{
					"course_id": courseID,
					"topic_id":  integer("Discussion topic ID"),
					"message":   text("Reply text"),
				},
				Required: []string{"course_id", "topic_id", "message"},
			},
			Hints: Hints{
				Verbs: []string{"reply", "respond", "answer", "comment"},
				Nouns: []string{"discussion", "topic", "thread", "forum"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				tid, _ := a.Int64("topic_id")
				return env.User.PostDiscussionReply(ctx, cid, tid, a.String("message"))
			},
		},
		{
			Name:        CreateDiscussion,
			Description: "Start a discussion topic in a course",
			Mutating:    true,
			Params: Schema{
				Properties: map[string]Property{
					"course_id": courseID,
					"title":     text("Topic title"),
					"message":   text("Opening message"),
				},
				Required: []string{"course_id", "title"},
			},
			Hints: Hints{
				Verbs: append(createVerbs, "open"),
				Nouns: []string{"discussion", "topic", "thread", "forum"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				return env.User.CreateDiscussion(ctx, cid, a.String("title"), a.String("message"))
			},
		},
		{
			Name:        ListDiscussions,
			Description: "List a course's discussion topics",
			Params: Schema{
				Properties: map[string]Property{"course_id": courseID},
				Required:   []string{"course_id"},
			},
			Hints: Hints{
				Verbs: readVerbs,
				Nouns: []string{"discussion", "topic", "thread", "forum"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				return env.User.ListDiscussions(ctx, cid)
			},
		},
		{
			Name:        CreatePage,
			Description: "Create a content page in a course",
			Mutating:    true,
			Params: Schema{
				Properties: map[string]Property{
					"course_id": courseID,
					"title":     text("Page title"),
					"body":      text("Page content (HTML allowed)"),
				},
				Required: []string{"course_id", "title"},
			},
			Hints: Hints{
				Verbs: createVerbs,
				Nouns: []string{"page", "wiki"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				return env.User.CreatePage(ctx, cid, a.String("title"), a.String("body"))
			},
		},
		{
			Name:        GetPage,
			Description: "Read one content page",
			Params: Schema{
				Properties: map[string]Property{"course_id": courseID, "page_url": text("URL slug of the page")},
				Required:   []string{"course_id", "page_url"},
			},
			Hints: Hints{
				Verbs: append(readVerbs, "read", "open"),
				Nouns: []string{"page"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				return env.User.GetPage(ctx, cid, a.String("page_url"))
			},
		},
		{
			Name:        ListPages,
			Description: "List a course's content pages",
			Params: Schema{
				Properties: map[string]Property{"course_id": courseID},
				Required:   []string{"course_id"},
			},
			Hints: Hints{
				Verbs: readVerbs,
				Nouns: []string{"page", "wiki"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				return env.User.ListPages(ctx, cid)
			},
		},
		{
			Name:        CreateQuiz,
			Description: "Create a quiz in a course",
			Mutating:    true,
			Params: Schema{
				Properties: map[string]Property{
					"course_id":   courseID,
					"title":       text("Quiz title"),
					"description": text("Quiz description"),
				},
				Required: []string{"course_id", "title"},
			},
			Hints: Hints{
				Verbs: createVerbs,
				Nouns: []string{"quiz", "quizzes", "test", "exam"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				return env.User.CreateQuiz(ctx, cid, a.String("title"), a.String("description"))
			},
		},
		{
			Name:        ListQuizzes,
			Description: "List a course's quizzes",
			Params: Schema{
				Properties: map[string]Property{"course_id": courseID},
				Required:   []string{"course_id"},
			},
			Hints: Hints{
				Verbs: readVerbs,
				Nouns: []string{"quiz", "quizzes", "test", "exam"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				return env.User.ListQuizzes(ctx, cid)
			},
		},
		{
			Name:        ListFiles,
			Description: "List a course's files",
			Params: Schema{
				Properties: map[string]Property{"course_id": courseID},
				Required:   []string{"course_id"},
			},
			Hints: Hints{
				Verbs: readVerbs,
				Nouns: []string{"file", "document", "material", "resource"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				return env.User.ListFiles(ctx, cid)
			},
		},
		{
			Name:        EnrollUser,
			Description: "Enroll a user in a course",
			Mutating:    true,
			Params: Schema{
				Properties: map[string]Property{
					"course_id": courseID,
					"user_id":   userID,
					"role": {
						Type:        "string",
						Description: "Enrollment type",
						Enum:        []string{"StudentEnrollment", "TeacherEnrollment", "TaEnrollment", "ObserverEnrollment"},
					},
				},
				Required: []string{"course_id", "user_id"},
			},
			Hints: Hints{
				Verbs: []string{"enroll", "enrol", "add", "register", "join"},
				Nouns: []string{"enroll", "enrol", "user", "student", "teacher"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				uid, _ := a.Int64("user_id")
				return env.Admin.EnrollUser(ctx, cid, uid, canonicalEnrollment(a.StringOr("role", "StudentEnrollment")))
			},
		},
		{
			Name:        UnenrollUser,
			Description: "Remove an enrollment from a course",
			Mutating:    true,
			Params: Schema{
				Properties: map[string]Property{
					"course_id":     courseID,
					"enrollment_id": integer("Canvas enrollment ID"),
				},
				Required: []string{"course_id", "enrollment_id"},
			},
			Hints: Hints{
				Verbs: []string{"unenroll", "remove", "drop", "delete"},
				Nouns: []string{"enrollment", "unenroll", "student", "user"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				eid, _ := a.Int64("enrollment_id")
				return env.Admin.Unenroll(ctx, cid, eid)
			},
		},
		{
			Name:        ListEnrollments,
			Description: "List the enrollments of a course",
			Params: Schema{
				Properties: map[string]Property{"course_id": courseID},
				Required:   []string{"course_id"},
			},
			Hints: Hints{
				Verbs: readVerbs,
				Nouns: []string{"enrollment", "enrolled"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				return env.User.ListEnrollments(ctx, cid)
			},
		},
		{
			Name:        ListCourseUsers,
			Description: "List the people in a course",
			Params: Schema{
				Properties: map[string]Property{"course_id": courseID},
				Required:   []string{"course_id"},
			},
			Hints: Hints{
				Verbs: readVerbs,
				Nouns: []string{"student", "roster", "classmate", "people", "participant", "member"},
				Cues:  []string{"who is in", "who's in"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				return env.User.ListCourseUsers(ctx, cid)
			},
		},
		{
			Name:        CreateUser,
			Description: "Create a Canvas user account",
			Mutating:    true,
			Params: Schema{
				Properties: map[string]Property{
					"name":     text("Full name"),
					"email":    text("Email address"),
					"login_id": text("Login username"),
				},
				Required: []string{"name", "email", "login_id"},
			},
			Hints: Hints{
				Verbs: append(createVerbs, "register"),
				Nouns: []string{"user", "account", "login"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				return env.Admin.CreateUser(ctx, canvas.UserParams{
					Name:    a.String("name"),
					Email:   a.String("email"),
					LoginID: a.String("login_id"),
				})
			},
		},
		{
			Name:        GetUserProfile,
			Description: "Show a user's profile",
			Params: Schema{
				Properties: map[string]Property{"user_id": userID},
				Required:   []string{"user_id"},
			},
			Hints: Hints{
				Verbs: readVerbs,
				Nouns: []string{"profile"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				uid, _ := a.Int64("user_id")
				return env.Admin.GetUserProfile(ctx, uid)
			},
		},
		{
			Name:        ListUsers,
			Description: "List or search users in the account",
			Params: Schema{
				Properties: map[string]Property{"search": text("Name, login or email to search for")},
			},
			Hints: Hints{
				Verbs: append(readVerbs, "search", "lookup"),
				Nouns: []string{"user", "account", "people"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				return env.Admin.ListUsers(ctx, a.String("search"))
			},
		},
		{
			Name:        PublishCourse,
			Description: "Publish a course so students can see it",
			Mutating:    true,
			Params: Schema{
				Properties: map[string]Property{"course_id": courseID},
				Required:   []string{"course_id"},
			},
			Hints: Hints{
				Verbs: []string{"publish", "release", "offer"},
				Nouns: []string{"course", "class"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				return env.User.PublishCourse(ctx, cid)
			},
		},
		{
			Name:        UpdateCourse,
			Description: "Rename a course or change its code or syllabus",
			Mutating:    true,
			Params: Schema{
				Properties: map[string]Property{
					"course_id":   courseID,
					"name":        text("New course name"),
					"course_code": text("New course code"),
					"syllabus":    text("Syllabus content"),
				},
				Required: []string{"course_id"},
			},
			Hints: Hints{
				Verbs: []string{"update", "rename", "change", "edit", "modify"},
				Nouns: []string{"course", "class", "syllabus"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				return env.User.UpdateCourse(ctx, cid, canvas.CourseParams{
					Name:       a.String("name"),
					CourseCode: a.String("course_code"),
					Syllabus:   a.String("syllabus"),
				})
			},
		},
		{
			Name:        CreateCourse,
			Description: "Create a new course; the code is derived from the name when omitted",
			Mutating:    true,
			Params: Schema{
				Properties: map[string]Property{
					"name":        text("Course name"),
					"course_code": text("Course code"),
				},
				Required: []string{"name"},
			},
			Hints: Hints{
				Verbs: createVerbs,
				Nouns: []string{"course", "class"},
			},
			Run: runCreateCourse,
		},
		{
			Name:        GetCourse,
			Description: "Show details and syllabus of one course",
			Params: Schema{
				Properties: map[string]Property{"course_id": courseID},
				Required:   []string{"course_id"},
			},
			Hints: Hints{
				Verbs: append(readVerbs, "describe"),
				Nouns: []string{"detail", "syllabus", "info", "about"},
				Cues:  []string{"course details", "about course", "about the course"},
			},
			Run: func(ctx context.Context, env Env, a Args) (any, error) {
				cid, _ := a.Int64("course_id")
				return env.User.GetCourse(ctx, cid)
			},
		},
		{
			Name:        ListCourses,
			Description: "List the user's courses (all account courses for admins)",
			Params:      Schema{Properties: map[string]Property{}},
			Hints: Hints{
				Verbs: append(readVerbs, "enrolled"),
				Nouns: []string{"course", "class"},
				Cues:  []string{"my courses", "my classes", "what am i taking"},
			},
			Run: func(ctx context.Context, env Env, _ Args) (any, error) {
				if env.Caller.Role == models.RoleAdmin {
					return env.Admin.ListAccountCourses(ctx)
				}
				return env.User.ListCourses(ctx)
			},
		},
		uploadAssignmentFileTool(),
		uploadModuleFileTool(),
		submitAssignmentFileTool(),
	}
}

// runCreateCourse creates the course in the account and, for teachers,
// enrolls the creator as its teacher. A failed enrollment is logged and
// reported but does not undo the course.
func runCreateCourse(ctx context.Context, env Env, a Args) (any, error) {
	name := a.String("name")
	course, err := env.Admin.CreateCourse(ctx, canvas.CourseParams{
		Name:       name,
		CourseCode: a.StringOr("course_code", DeriveCourseCode(name)),
	})
	if err != nil {
		return nil, err
	}
	out := CourseCreated{Course: course}
	if env.Caller.Role == models.RoleTeacher && env.Caller.CanvasUserID != 0 {
		if _, err := env.Admin.EnrollUser(ctx, course.ID, env.Caller.CanvasUserID, "TeacherEnrollment"); err != nil {
			env.Logger.Warn("failed to enroll course creator",
				zap.Int64("course_id", course.ID),
				zap.Int64("canvas_user_id", env.Caller.CanvasUserID),
				zap.Error(err))
		} else {
			out.TeacherEnrolled = true
		}
	}
	return out, nil
}

// DeriveCourseCode builds a short code from a course name:
// "Introduction to Biology 101" -> "ITB101".
func DeriveCourseCode(name string) string {
	var code strings.Builder
	for _, word := range strings.Fields(name) {
		r := []rune(word)
		switch {
		case unicode.IsDigit(r[0]):
			code.WriteString(word)
		case unicode.IsLetter(r[0]):
			code.WriteRune(unicode.ToUpper(r[0]))
		}
	}
	if code.Len() == 0 {
		return "COURSE"
	}
	return code.String()
}

func canonicalEnrollment(role string) string {
	switch strings.TrimSuffix(strings.ToLower(role), "enrollment") {
	case "teacher", "instructor", "faculty":
		return "TeacherEnrollment"
	case "ta":
		return "TaEnrollment"
	case "observer":
		return "ObserverEnrollment"
	default:
		return "StudentEnrollment"
	}
}

func canonicalItemType(t string) string {
	for _, known := range []string{"Assignment", "Page", "Quiz", "File", "SubHeader"} {
		if strings.EqualFold(known, t) {
			return known
		}
	}
	return t
}
