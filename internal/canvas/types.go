package canvas

import "time"

type Course struct {
	ID             int64        `json:"id"`
	Name           string       `json:"name"`
	CourseCode     string       `json:"course_code"`
	WorkflowState  string       `json:"workflow_state,omitempty"`
	AccountID      int64        `json:"account_id,omitempty"`
	StartAt        *time.Time   `json:"start_at,omitempty"`
	EndAt          *time.Time   `json:"end_at,omitempty"`
	TotalStudents  int          `json:"total_students,omitempty"`
	Enrollments    []Enrollment `json:"enrollments,omitempty"`
	SyllabusBody   string       `json:"syllabus_body,omitempty"`
	DefaultView    string       `json:"default_view,omitempty"`
	IsPublic       bool         `json:"is_public,omitempty"`
	TimeZone       string       `json:"time_zone,omitempty"`
	EnrollmentTerm *Term        `json:"term,omitempty"`
}

type Term struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Module struct {
	ID         int64        `json:"id"`
	Name       string       `json:"name"`
	Position   int          `json:"position"`
	Published  bool         `json:"published"`
	ItemsCount int          `json:"items_count"`
	State      string       `json:"state,omitempty"`
	Items      []ModuleItem `json:"items,omitempty"`
}

type ModuleItem struct {
	ID        int64  `json:"id"`
	ModuleID  int64  `json:"module_id"`
	Title     string `json:"title"`
	Type      string `json:"type"`
	ContentID int64  `json:"content_id,omitempty"`
	PageURL   string `json:"page_url,omitempty"`
	HTMLURL   string `json:"html_url,omitempty"`
	Position  int    `json:"position"`
	Published bool   `json:"published"`
}

type Assignment struct {
	ID              int64      `json:"id"`
	CourseID        int64      `json:"course_id"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	PointsPossible  float64    `json:"points_possible"`
	DueAt           *time.Time `json:"due_at,omitempty"`
	SubmissionTypes []string   `json:"submission_types,omitempty"`
	Published       bool       `json:"published"`
	HTMLURL         string     `json:"html_url,omitempty"`
}

type Submission struct {
	ID             int64      `json:"id"`
	AssignmentID   int64      `json:"assignment_id"`
	UserID         int64      `json:"user_id"`
	Grade          string     `json:"grade,omitempty"`
	Score          *float64   `json:"score,omitempty"`
	SubmittedAt    *time.Time `json:"submitted_at,omitempty"`
	Late           bool       `json:"late"`
	Missing        bool       `json:"missing"`
	WorkflowState  string     `json:"workflow_state"`
	SubmissionType string     `json:"submission_type,omitempty"`
}

type User struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	SortableName  string `json:"sortable_name,omitempty"`
	LoginID       string `json:"login_id,omitempty"`
	Email         string `json:"email,omitempty"`
	AlreadyExists bool   `json:"already_exists,omitempty"`
}

type Enrollment struct {
	ID              int64   `json:"id"`
	CourseID        int64   `json:"course_id"`
	UserID          int64   `json:"user_id"`
	Type            string  `json:"type"`
	Role            string  `json:"role,omitempty"`
	EnrollmentState string  `json:"enrollment_state"`
	User            *User   `json:"user,omitempty"`
	Grades          *Grades `json:"grades,omitempty"`
}

type Grades struct {
	CurrentScore *float64 `json:"current_score,omitempty"`
	CurrentGrade string   `json:"current_grade,omitempty"`
	FinalScore   *float64 `json:"final_score,omitempty"`
}

type DiscussionTopic struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Message        string     `json:"message,omitempty"`
	PostedAt       *time.Time `json:"posted_at,omitempty"`
	IsAnnouncement bool       `json:"is_announcement,omitempty"`
	Published      bool       `json:"published"`
	HTMLURL        string     `json:"html_url,omitempty"`
}

type DiscussionEntry struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Message   string     `json:"message"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

type Page struct {
	PageID    int64      `json:"page_id"`
	URL       string     `json:"url"`
	Title     string     `json:"title"`
	Body      string     `json:"body,omitempty"`
	Published bool       `json:"published"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type Quiz struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	QuizType       string     `json:"quiz_type"`
	PointsPossible *float64   `json:"points_possible,omitempty"`
	QuestionCount  int        `json:"question_count"`
	DueAt          *time.Time `json:"due_at,omitempty"`
	Published      bool       `json:"published"`
}

type File struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Filename    string `json:"filename"`
	ContentType string `json:"content-type"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
}

// UpcomingAssignment is a dated assignment in one of the user's courses.
type UpcomingAssignment struct {
	CourseID       int64     `json:"course_id"`
	CourseName     string    `json:"course_name"`
	AssignmentID   int64     `json:"assignment_id"`
	AssignmentName string    `json:"assignment_name"`
	DueAt          time.Time `json:"due_at"`
	PointsPossible float64   `json:"points_possible"`
}

// CourseProgress summarizes a student's submissions in one course.
type CourseProgress struct {
	CourseID             int64   `json:"course_id"`
	TotalAssignments     int     `json:"total_assignments"`
	SubmittedAssignments int     `json:"submitted_assignments"`
	GradedAssignments    int     `json:"graded_assignments"`
	LateSubmissions      int     `json:"late_submissions"`
	AverageScore         float64 `json:"average_score"`
	CompletionRate       float64 `json:"completion_rate"`
}
