package tools

import (
	"sort"

	"github.com/RichardoC/lms-chat/internal/models"
)

// ToolSet is an immutable set of tool names.
type ToolSet struct {
	names map[string]struct{}
}

func NewToolSet(names ...string) ToolSet {
	set := ToolSet{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		set.names[n] = struct{}{}
	}
	return set
}

func (s ToolSet) Has(name string) bool {
	_, ok := s.names[name]
	return ok
}

func (s ToolSet) Len() int { return len(s.names) }

// Names returns the members sorted.
func (s ToolSet) Names() []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

var studentTools = []string{
	ListUpcomingAssignments, GetCourseProgress, GetGrades, GenerateLearningPlan,
	ListModuleItems, ListModules, GetAssignment, ListAssignments,
	ListAnnouncements, ListDiscussions, GetPage, ListPages, ListQuizzes, ListFiles,
	GetCourse, ListCourses,
	SubmitAssignment, SubmitAssignmentFile, PostDiscussionReply,
}

var teacherTools = []string{
	ListUpcomingAssignments, GetCourseProgress, GetGrades, GenerateLearningPlan,
	ListModuleItems, ListModules, GetAssignment, ListAssignments, ListSubmissions,
	ListAnnouncements, ListDiscussions, GetPage, ListPages, ListQuizzes, ListFiles,
	ListCourseUsers, ListEnrollments, GetCourse, ListCourses,
	AddModuleItem, PublishModule, CreateModule, GradeSubmission, DeleteAssignment,
	CreateAssignment, CreateAnnouncement, CreateDiscussion, PostDiscussionReply,
	CreatePage, CreateQuiz, PublishCourse, UpdateCourse, CreateCourse, EnrollUser,
	UploadAssignmentFile, UploadModuleFile,
}

var adminTools = append([]string{
	GetUserProfile, ListUsers, CreateUser, UnenrollUser,
}, teacherTools...)

// permissions maps each role to the operations it may trigger. It is built
// once and never modified.
var permissions = map[models.Role]ToolSet{
	models.RoleStudent: NewToolSet(studentTools...),
	models.RoleTeacher: NewToolSet(teacherTools...),
	models.RoleAdmin:   NewToolSet(adminTools...),
}

// Permitted returns the tool set of role. Unknown roles get the student set.
func Permitted(role models.Role) ToolSet {
	if set, ok := permissions[role]; ok {
		return set
	}
	return permissions[models.RoleStudent]
}
