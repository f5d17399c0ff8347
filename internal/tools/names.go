package tools

import "strings"

// Tool names.
const (
	ListUpcomingAssignments = "list_upcoming_assignments"
	GetCourseProgress       = "get_course_progress"
	GenerateLearningPlan    = "generate_learning_plan"
	GradeSubmission         = "grade_submission"
	GetGrades               = "get_grades"
	ListSubmissions         = "list_submissions"
	SubmitAssignment        = "submit_assignment"
	AddModuleItem           = "add_module_item"
	ListModuleItems         = "list_module_items"
	PublishModule           = "publish_module"
	CreateModule            = "create_module"
	ListModules             = "list_modules"
	DeleteAssignment        = "delete_assignment"
	CreateAssignment        = "create_assignment"
	GetAssignment           = "get_assignment"
	ListAssignments         = "list_assignments"
	CreateAnnouncement      = "create_announcement"
	ListAnnouncements       = "list_announcements"
	PostDiscussionReply     = "post_discussion_reply"
	CreateDiscussion        = "create_discussion"
	ListDiscussions         = "list_discussions"
	CreatePage              = "create_page"
	GetPage                 = "get_page"
	ListPages               = "list_pages"
	CreateQuiz              = "create_quiz"
	ListQuizzes             = "list_quizzes"
	ListFiles               = "list_files"
	EnrollUser              = "enroll_user"
	UnenrollUser            = "unenroll_user"
	ListEnrollments         = "list_enrollments"
	ListCourseUsers         = "list_course_users"
	CreateUser              = "create_user"
	GetUserProfile          = "get_user_profile"
	ListUsers               = "list_users"
	PublishCourse           = "publish_course"
	UpdateCourse            = "update_course"
	CreateCourse            = "create_course"
	GetCourse               = "get_course"
	ListCourses             = "list_courses"
	UploadAssignmentFile    = "upload_assignment_file"
	UploadModuleFile        = "upload_module_file"
	SubmitAssignmentFile    = "submit_assignment_file"
)

// Describe turns a tool name into a verb phrase: create_course -> "create courses".
func Describe(name string) string {
	words := strings.Split(name, "_")
	if len(words) == 2 && !strings.HasSuffix(words[1], "s") {
		words[1] += "s"
	}
	return strings.Join(words, " ")
}
