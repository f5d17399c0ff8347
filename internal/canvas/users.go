package canvas

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/RichardoC/lms-chat/internal/apperr"
)

// ListUsers lists account users, filtered by search when it is non-empty.
// Canvas requires at least two characters in a search term.
func (c *Client) ListUsers(ctx context.Context, search string) ([]User, error) {
	query := url.Values{}
	if len(strings.TrimSpace(search)) >= 2 {
		query.Set("search_term", strings.TrimSpace(search))
	}
	return getList[User](ctx, c, fmt.Sprintf("/accounts/%d/users", c.accountID), query)
}

func (c *Client) ListCourseUsers(ctx context.Context, courseID int64) ([]User, error) {
	query := url.Values{"include[]": {"email"}}
	return getList[User](ctx, c, fmt.Sprintf("/courses/%d/users", courseID), query)
}

func (c *Client) GetUserProfile(ctx context.Context, userID int64) (*User, error) {
	var profile struct {
		User
		PrimaryEmail string `json:"primary_email"`
	}
	if err := c.get(ctx, fmt.Sprintf("/users/%d/profile", userID), nil, &profile); err != nil {
		return nil, err
	}
	user := profile.User
	if user.Email == "" {
		user.Email = profile.PrimaryEmail
	}
	return &user, nil
}

// FindUserByLogin searches the account for an exact login or email match.
func (c *Client) FindUserByLogin(ctx context.Context, login string) (*User, error) {
	users, err := c.ListUsers(ctx, login)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if strings.EqualFold(users[i].LoginID, login) || strings.EqualFold(users[i].Email, login) {
			return &users[i], nil
		}
	}
	return nil, apperr.New(apperr.KindNotFound, "no Canvas user with login %q", login)
}

type UserParams struct {
	Name     string
	Email    string
	LoginID  string
	Password string
}

// CreateUser creates an account user. When Canvas rejects the login as
// taken, the existing user is returned with AlreadyExists set.
func (c *Client) CreateUser(ctx context.Context, p UserParams) (*User, error) {
	form := url.Values{
		"user[name]":                               {p.Name},
		"pseudonym[unique_id]":                     {p.LoginID},
		"pseudonym[send_confirmation]":             {"false"},
		"communication_channel[type]":              {"email"},
		"communication_channel[address]":           {p.Email},
		"communication_channel[skip_confirmation]": {"true"},
	}
	setIf(form, "pseudonym[password]", p.Password)

	var user User
	err := c.post(ctx, fmt.Sprintf("/accounts/%d/users", c.accountID), form, &user)
	if err == nil {
		return &user, nil
	}
	if apperr.KindOf(err) != apperr.KindValidation {
		return nil, err
	}
	existing, findErr := c.FindUserByLogin(ctx, p.LoginID)
	if findErr != nil && p.Email != "" {
		existing, findErr = c.FindUserByLogin(ctx, p.Email)
	}
	if findErr != nil {
		return nil, errors.Join(err, findErr)
	}
	existing.AlreadyExists = true
	return existing, nil
}

func (c *Client) ListEnrollments(ctx context.Context, courseID int64) ([]Enrollment, error) {
	return getList[Enrollment](ctx, c, fmt.Sprintf("/courses/%d/enrollments", courseID), nil)
}

// ListUserEnrollments lists the active enrollments of one user.
func (c *Client) ListUserEnrollments(ctx context.Context, userID int64) ([]Enrollment, error) {
	query := url.Values{"state[]": {"active"}}
	return getList[Enrollment](ctx, c, fmt.Sprintf("/users/%d/enrollments", userID), query)
}

// EnrollUser enrolls userID with an enrollment type such as
// StudentEnrollment or TeacherEnrollment.
func (c *Client) EnrollUser(ctx context.Context, courseID, userID int64, enrollmentType string) (*Enrollment, error) {
	if enrollmentType == "" {
		enrollmentType = "StudentEnrollment"
	}
	form := url.Values{
		"enrollment[user_id]":          {strconv.FormatInt(userID, 10)},
		"enrollment[type]":             {enrollmentType},
		"enrollment[enrollment_state]": {"active"},
	}
	var enrollment Enrollment
	if err := c.post(ctx, fmt.Sprintf("/courses/%d/enrollments", courseID), form, &enrollment); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (c *Client) Unenroll(ctx context.Context, courseID, enrollmentID int64) (*Enrollment, error) {
	var enrollment Enrollment
	form := url.Values{"task": {"delete"}}
	if err := c.delete(ctx, fmt.Sprintf("/courses/%d/enrollments/%d", courseID, enrollmentID), form, &enrollment); err != nil {
		return nil, err
	}
	return &enrollment, nil
}
