package tools

import (
	"context"
	"fmt"
)

const maxPlanWeeks = 8

var studyTips = []string{
	"Review notes within 24 hours of class",
	"Use active recall instead of rereading",
	"Study in 25-minute focused sessions",
	"Write a summary after finishing each module",
}

func runLearningPlan(ctx context.Context, env Env, a Args) (any, error) {
	cid, _ := a.Int64("course_id")
	hours := a.IntOr("study_hours_per_week", 10)
	modules, err := env.User.ListModules(ctx, cid)
	if err != nil {
		return nil, err
	}
	plan := LearningPlan{CourseID: cid, StudyHoursPerWeek: hours, Tips: studyTips, Weeks: []PlanWeek{}}
	perWeek := int64(2)
	if len(modules) > 0 {
		perWeek = max(hours/int64(len(modules)), 1)
	}
	now := env.Now()
	for i, m := range modules {
		if i == maxPlanWeeks {
			break
		}
		name := m.Name
		if name == "" {
			name = fmt.Sprintf("Module %d", i+1)
		}
		plan.Weeks = append(plan.Weeks, PlanWeek{
			Week:           i + 1,
			Module:         name,
			HoursAllocated: perWeek,
			FocusAreas:     []string{"Read module content", "Complete practice exercises", "Review key concepts"},
			Deadline:       now.AddDate(0, 0, 7*(i+1)).Format("2006-01-02"),
		})
	}
	return plan, nil
}
