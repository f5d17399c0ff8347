package tools

import "github.com/RichardoC/lms-chat/internal/canvas"

// CourseCreated is returned by create_course.
type CourseCreated struct {
	Course          *canvas.Course `json:"course"`
	TeacherEnrolled bool           `json:"teacher_enrolled"`
}

// LearningPlan spreads a course's modules over weeks.
type LearningPlan struct {
	CourseID          int64      `json:"course_id"`
	StudyHoursPerWeek int64      `json:"study_hours_per_week"`
	Weeks             []PlanWeek `json:"weekly_schedule"`
	Tips              []string   `json:"study_tips"`
}

type PlanWeek struct {
	Week           int      `json:"week"`
	Module         string   `json:"module"`
	HoursAllocated int64    `json:"hours_allocated"`
	FocusAreas     []string `json:"focus_areas"`
	Deadline       string   `json:"deadline"`
}

// Upload is returned by the file upload tools.
type Upload struct {
	File       *canvas.File       `json:"file"`
	Assignment *canvas.Assignment `json:"assignment,omitempty"`
	ModuleItem *canvas.ModuleItem `json:"module_item,omitempty"`
	Submission *canvas.Submission `json:"submission,omitempty"`
	Message    string             `json:"message"`
}
