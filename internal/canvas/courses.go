package canvas

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// ListCourses returns the acting user's courses, or the token owner's when
// the client is not masquerading.
func (c *Client) ListCourses(ctx context.Context) ([]Course, error) {
	if c.asUserID != 0 {
		query := url.Values{"include[]": {"total_scores", "term"}}
		return getList[Course](ctx, c, fmt.Sprintf("/users/%d/courses", c.asUserID), query)
	}
	return getList[Course](ctx, c, "/courses", nil)
}

// ListAccountCourses lists every course in the configured account.
func (c *Client) ListAccountCourses(ctx context.Context) ([]Course, error) {
	return getList[Course](ctx, c, fmt.Sprintf("/accounts/%d/courses", c.accountID), nil)
}

func (c *Client) GetCourse(ctx context.Context, courseID int64) (*Course, error) {
	var course Course
	if err := c.get(ctx, fmt.Sprintf("/courses/%d", courseID), url.Values{"include[]": {"syllabus_body"}}, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

type CourseParams struct {
	Name       string
	CourseCode string
	StartAt    string
	EndAt      string
	Syllabus   string
}

func (p CourseParams) form() url.Values {
	form := url.Values{}
	setIf(form, "course[name]", p.Name)
	setIf(form, "course[course_code]", p.CourseCode)
	setIf(form, "course[start_at]", p.StartAt)
	setIf(form, "course[end_at]", p.EndAt)
	setIf(form, "course[syllabus_body]", p.Syllabus)
	return form
}

// CreateCourse creates a course in the configured account.
func (c *Client) CreateCourse(ctx context.Context, p CourseParams) (*Course, error) {
	var course Course
	if err := c.post(ctx, fmt.Sprintf("/accounts/%d/courses", c.accountID), p.form(), &course); err != nil {
		return nil, err
	}
	return &course, nil
}

func (c *Client) UpdateCourse(ctx context.Context, courseID int64, p CourseParams) (*Course, error) {
	var course Course
	if err := c.put(ctx, fmt.Sprintf("/courses/%d", courseID), p.form(), &course); err != nil {
		return nil, err
	}
	return &course, nil
}

func (c *Client) PublishCourse(ctx context.Context, courseID int64) (*Course, error) {
	var course Course
	form := url.Values{"course[event]": {"offer"}}
	if err := c.put(ctx, fmt.Sprintf("/courses/%d", courseID), form, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

func (c *Client) ListModules(ctx context.Context, courseID int64) ([]Module, error) {
	return getList[Module](ctx, c, fmt.Sprintf("/courses/%d/modules", courseID), nil)
}

func (c *Client) CreateModule(ctx context.Context, courseID int64, name string, position int) (*Module, error) {
	form := url.Values{"module[name]": {name}}
	if position > 0 {
		form.Set("module[position]", strconv.Itoa(position))
	}
	var module Module
	if err := c.post(ctx, fmt.Sprintf("/courses/%d/modules", courseID), form, &module); err != nil {
		return nil, err
	}
	return &module, nil
}

func (c *Client) PublishModule(ctx context.Context, courseID, moduleID int64) (*Module, error) {
	var module Module
	form := url.Values{"module[published]": {"true"}}
	if err := c.put(ctx, fmt.Sprintf("/courses/%d/modules/%d", courseID, moduleID), form, &module); err != nil {
		return nil, err
	}
	return &module, nil
}

func (c *Client) ListModuleItems(ctx context.Context, courseID, moduleID int64) ([]ModuleItem, error) {
	return getList[ModuleItem](ctx, c, fmt.Sprintf("/courses/%d/modules/%d/items", courseID, moduleID), nil)
}

type ModuleItemParams struct {
	Type      string // File, Page, Assignment, Quiz, ExternalUrl, SubHeader
	ContentID int64
	PageURL   string
	Title     string
}

func (c *Client) AddModuleItem(ctx context.Context, courseID, moduleID int64, p ModuleItemParams) (*ModuleItem, error) {
	form := url.Values{"module_item[type]": {p.Type}}
	switch {
	case p.Type == "Page" && p.PageURL != "":
		form.Set("module_item[page_url]", p.PageURL)
	case p.ContentID != 0:
		form.Set("module_item[content_id]", strconv.FormatInt(p.ContentID, 10))
	}
	setIf(form, "module_item[title]", p.Title)

	var item ModuleItem
	if err := c.post(ctx, fmt.Sprintf("/courses/%d/modules/%d/items", courseID, moduleID), form, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) ListPages(ctx context.Context, courseID int64) ([]Page, error) {
	return getList[Page](ctx, c, fmt.Sprintf("/courses/%d/pages", courseID), nil)
}

func (c *Client) GetPage(ctx context.Context, courseID int64, pageURL string) (*Page, error) {
	var page Page
	if err := c.get(ctx, fmt.Sprintf("/courses/%d/pages/%s", courseID, url.PathEscape(pageURL)), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) CreatePage(ctx context.Context, courseID int64, title, body string) (*Page, error) {
	form := url.Values{
		"wiki_page[title]":     {title},
		"wiki_page[body]":      {body},
		"wiki_page[published]": {"true"},
	}
	var page Page
	if err := c.post(ctx, fmt.Sprintf("/courses/%d/pages", courseID), form, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) ListAnnouncements(ctx context.Context, courseID int64) ([]DiscussionTopic, error) {
	query := url.Values{"only_announcements": {"true"}}
	return getList[DiscussionTopic](ctx, c, fmt.Sprintf("/courses/%d/discussion_topics", courseID), query)
}

func (c *Client) CreateAnnouncement(ctx context.Context, courseID int64, title, message string) (*DiscussionTopic, error) {
	form := url.Values{
		"title":           {title},
		"message":         {message},
		"is_announcement": {"true"},
		"published":       {"true"},
	}
	var topic DiscussionTopic
	if err := c.post(ctx, fmt.Sprintf("/courses/%d/discussion_topics", courseID), form, &topic); err != nil {
		return nil, err
	}
	return &topic, nil
}

func (c *Client) ListDiscussions(ctx context.Context, courseID int64) ([]DiscussionTopic, error) {
	return getList[DiscussionTopic](ctx, c, fmt.Sprintf("/courses/%d/discussion_topics", courseID), nil)
}

func (c *Client) CreateDiscussion(ctx context.Context, courseID int64, title, message string) (*DiscussionTopic, error) {
	form := url.Values{
		"title":           {title},
		"message":         {message},
		"discussion_type": {"threaded"},
		"published":       {"true"},
	}
	var topic DiscussionTopic
	if err := c.post(ctx, fmt.Sprintf("/courses/%d/discussion_topics", courseID), form, &topic); err != nil {
		return nil, err
	}
	return &topic, nil
}

func (c *Client) PostDiscussionReply(ctx context.Context, courseID, topicID int64, message string) (*DiscussionEntry, error) {
	var entry DiscussionEntry
	form := url.Values{"message": {message}}
	if err := c.post(ctx, fmt.Sprintf("/courses/%d/discussion_topics/%d/entries", courseID, topicID), form, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *Client) ListQuizzes(ctx context.Context, courseID int64) ([]Quiz, error) {
	return getList[Quiz](ctx, c, fmt.Sprintf("/courses/%d/quizzes", courseID), nil)
}

func (c *Client) CreateQuiz(ctx context.Context, courseID int64, title, description string) (*Quiz, error) {
	form := url.Values{
		"quiz[title]":     {title},
		"quiz[quiz_type]": {"assignment"},
		"quiz[published]": {"true"},
	}
	setIf(form, "quiz[description]", description)
	var quiz Quiz
	if err := c.post(ctx, fmt.Sprintf("/courses/%d/quizzes", courseID), form, &quiz); err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (c *Client) ListFiles(ctx context.Context, courseID int64) ([]File, error) {
	return getList[File](ctx, c, fmt.Sprintf("/courses/%d/files", courseID), nil)
}

func setIf(form url.Values, key, value string) {
	if value != "" {
		form.Set(key, value)
	}
}
