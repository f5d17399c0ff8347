package canvas

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/RichardoC/lms-chat/internal/apperr"
)

// Upload describes a local file headed for Canvas.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Folder      string
	Body        io.Reader
}

type uploadTicket struct {
	UploadURL    string            `json:"upload_url"`
	UploadParams map[string]string `json:"upload_params"`
}

// UploadCourseFile runs the Canvas three-step upload: announce the file,
// post the bytes to the returned upload URL, then confirm.
func (c *Client) UploadCourseFile(ctx context.Context, courseID int64, up Upload) (*File, error) {
	return c.uploadFile(ctx, fmt.Sprintf("/courses/%d/files", courseID), up)
}

// UploadSubmissionFile uploads on behalf of the acting user for a submission.
func (c *Client) UploadSubmissionFile(ctx context.Context, courseID, assignmentID int64, up Upload) (*File, error) {
	path := fmt.Sprintf("/courses/%d/assignments/%d/submissions/self/files", courseID, assignmentID)
	return c.uploadFile(ctx, path, up)
}

func (c *Client) uploadFile(ctx context.Context, path string, up Upload) (*File, error) {
	form := url.Values{
		"name":         {up.Name},
		"size":         {strconv.FormatInt(up.Size, 10)},
		"content_type": {up.ContentType},
	}
	setIf(form, "parent_folder_path", up.Folder)

	var ticket uploadTicket
	if err := c.post(ctx, path, form, &ticket); err != nil {
		return nil, err
	}
	if ticket.UploadURL == "" {
		return nil, apperr.New(apperr.KindUpstreamError, "Canvas did not return an upload URL")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range ticket.UploadParams {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write upload field: %w", err)
		}
	}
	part, err := mw.CreateFormFile("file", up.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload part: %w", err)
	}
	if _, err := io.Copy(part, up.Body); err != nil {
		return nil, fmt.Errorf("failed to copy upload body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	// The upload URL may live on a storage host; it carries its own auth in
	// upload_params so the bearer token is not sent there.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ticket.UploadURL, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	noRedirect := *c.httpClient
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	resp, err := noRedirect.Do(req)
	if err != nil {
		if apperr.IsTimeout(err) {
			return nil, apperr.Wrap(apperr.KindUpstreamTimeout, err, "file upload timed out")
		}
		return nil, apperr.Wrap(apperr.KindUpstreamError, err, "file upload failed")
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		location := resp.Header.Get("Location")
		if location == "" {
			return nil, apperr.New(apperr.KindUpstreamError, "file upload redirect had no location")
		}
		return c.confirmUpload(ctx, location)
	case resp.StatusCode >= 400:
		return nil, statusError(resp.StatusCode, body)
	}

	var file File
	if err := jsonUnmarshal(body, &file); err != nil {
		return nil, err
	}
	if file.ID == 0 {
		if location := resp.Header.Get("Location"); location != "" {
			return c.confirmUpload(ctx, location)
		}
	}
	return &file, nil
}

func (c *Client) confirmUpload(ctx context.Context, location string) (*File, error) {
	req, err := c.newRequest(ctx, http.MethodGet, location, nil, "")
	if err != nil {
		return nil, err
	}
	var file File
	if _, err := c.do(req, &file); err != nil {
		return nil, err
	}
	return &file, nil
}
