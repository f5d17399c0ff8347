package canvas

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"
)

func (c *Client) ListAssignments(ctx context.Context, courseID int64) ([]Assignment, error) {
	return getList[Assignment](ctx, c, fmt.Sprintf("/courses/%d/assignments", courseID), nil)
}

func (c *Client) GetAssignment(ctx context.Context, courseID, assignmentID int64) (*Assignment, error) {
	var a Assignment
	if err := c.get(ctx, fmt.Sprintf("/courses/%d/assignments/%d", courseID, assignmentID), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

type AssignmentParams struct {
	Name            string
	Description     string
	PointsPossible  float64
	DueAt           string
	SubmissionTypes []string
	Unpublished     bool
}

func (p AssignmentParams) form() url.Values {
	form := url.Values{}
	setIf(form, "assignment[name]", p.Name)
	setIf(form, "assignment[description]", p.Description)
	setIf(form, "assignment[due_at]", p.DueAt)
	if p.PointsPossible > 0 {
		form.Set("assignment[points_possible]", strconv.FormatFloat(p.PointsPossible, 'f', -1, 64))
	}
	for _, t := range p.SubmissionTypes {
		form.Add("assignment[submission_types][]", t)
	}
	form.Set("assignment[published]", strconv.FormatBool(!p.Unpublished))
	return form
}

// CreateAssignment creates a published assignment unless p.Unpublished is set.
func (c *Client) CreateAssignment(ctx context.Context, courseID int64, p AssignmentParams) (*Assignment, error) {
	var a Assignment
	if err := c.post(ctx, fmt.Sprintf("/courses/%d/assignments", courseID), p.form(), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) DeleteAssignment(ctx context.Context, courseID, assignmentID int64) (*Assignment, error) {
	var a Assignment
	if err := c.delete(ctx, fmt.Sprintf("/courses/%d/assignments/%d", courseID, assignmentID), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListSubmissions lists submissions in a course, restricted to one student
// when userID is non-zero.
func (c *Client) ListSubmissions(ctx context.Context, courseID, userID int64) ([]Submission, error) {
	query := url.Values{}
	if userID != 0 {
		query.Set("student_ids[]", strconv.FormatInt(userID, 10))
	} else {
		query.Set("student_ids[]", "all")
	}
	return getList[Submission](ctx, c, fmt.Sprintf("/courses/%d/students/submissions", courseID), query)
}

func (c *Client) GradeSubmission(ctx context.Context, courseID, assignmentID, userID int64, grade, comment string) (*Submission, error) {
	form := url.Values{"submission[posted_grade]": {grade}}
	setIf(form, "comment[text_comment]", comment)
	var sub Submission
	path := fmt.Sprintf("/courses/%d/assignments/%d/submissions/%d", courseID, assignmentID, userID)
	if err := c.put(ctx, path, form, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

type SubmissionParams struct {
	Type    string // online_text_entry, online_url, online_upload
	Body    string
	URL     string
	FileIDs []int64
	Comment string
}

func (c *Client) SubmitAssignment(ctx context.Context, courseID, assignmentID int64, p SubmissionParams) (*Submission, error) {
	form := url.Values{"submission[submission_type]": {p.Type}}
	setIf(form, "submission[body]", p.Body)
	setIf(form, "submission[url]", p.URL)
	for _, id := range p.FileIDs {
		form.Add("submission[file_ids][]", strconv.FormatInt(id, 10))
	}
	setIf(form, "comment[text_comment]", p.Comment)

	var sub Submission
	if err := c.post(ctx, fmt.Sprintf("/courses/%d/assignments/%d/submissions", courseID, assignmentID), form, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpcomingAssignments collects dated assignments due after now across the
// acting user's active courses, soonest first. Courses whose assignments
// cannot be read are skipped.
func (c *Client) UpcomingAssignments(ctx context.Context, now time.Time) ([]UpcomingAssignment, error) {
	courses, err := c.ListCourses(ctx)
	if err != nil {
		return nil, err
	}

	upcoming := make([]UpcomingAssignment, 0)
	for _, course := range courses {
		assignments, err := c.ListAssignments(ctx, course.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			c.logger.Warn("skipping course assignments", zap.Int64("course_id", course.ID), zap.Error(err))
			continue
		}
		for _, a := range assignments {
			if a.DueAt == nil || a.DueAt.Before(now) {
				continue
			}
			upcoming = append(upcoming, UpcomingAssignment{
				CourseID:       course.ID,
				CourseName:     course.Name,
				AssignmentID:   a.ID,
				AssignmentName: a.Name,
				DueAt:          *a.DueAt,
				PointsPossible: a.PointsPossible,
			})
		}
	}
	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].DueAt.Before(upcoming[j].DueAt)
	})
	return upcoming, nil
}

// CourseProgress derives completion figures from assignments and the
// student's submissions.
func (c *Client) CourseProgress(ctx context.Context, courseID, userID int64) (*CourseProgress, error) {
	assignments, err := c.ListAssignments(ctx, courseID)
	if err != nil {
		return nil, err
	}
	submissions, err := c.ListSubmissions(ctx, courseID, userID)
	if err != nil {
		return nil, err
	}

	progress := &CourseProgress{CourseID: courseID, TotalAssignments: len(assignments)}
	var scored int
	var total float64
	for _, s := range submissions {
		if s.SubmittedAt != nil {
			progress.SubmittedAssignments++
		}
		if s.Grade != "" {
			progress.GradedAssignments++
		}
		if s.Late {
			progress.LateSubmissions++
		}
		if s.Score != nil {
			scored++
			total += *s.Score
		}
	}
	if scored > 0 {
		progress.AverageScore = round2(total / float64(scored))
	}
	if progress.TotalAssignments > 0 {
		progress.CompletionRate = round2(float64(progress.SubmittedAssignments) / float64(progress.TotalAssignments) * 100)
	}
	return progress, nil
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
