package tools

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/RichardoC/lms-chat/internal/apperr"
	"github.com/RichardoC/lms-chat/internal/canvas"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var allowedExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true, "bmp": true, "svg": true,
	"pdf": true, "doc": true, "docx": true, "txt": true, "rtf": true, "odt": true,
	"ppt": true, "pptx": true, "odp": true, "xls": true, "xlsx": true, "ods": true, "csv": true,
	"mp4": true, "avi": true, "mov": true, "wmv": true, "webm": true,
	"mp3": true, "wav": true, "ogg": true, "aac": true, "m4a": true,
	"zip": true, "7z": true, "tar": true, "gz": true,
}

// ErrTooLarge is returned by SaveUpload when the body exceeds the limit.
var ErrTooLarge = errors.New("file too large")

// SecureFilename strips directories and replaces anything outside
// [A-Za-z0-9._-] with an underscore.
func SecureFilename(name string) string {
	name = name[strings.LastIndexAny(name, `/\`)+1:]
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}

// SaveUpload stores r under dir with a unique prefix and returns the path.
func SaveUpload(dir, name string, r io.Reader, maxBytes int64) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if !allowedExtensions[ext] {
		return "", apperr.New(apperr.KindValidation, "File type not allowed")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, uuid.NewString()[:8]+"_"+SecureFilename(name))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	n, err := io.Copy(f, io.LimitReader(r, maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > maxBytes {
		err = apperr.Wrap(apperr.KindValidation, ErrTooLarge, "File too large (max %d MB)", maxBytes>>20)
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// openUpload opens a previously saved upload. Paths outside dir are refused.
func openUpload(dir, path string) (*os.File, canvas.Upload, error) {
	if dir == "" {
		return nil, canvas.Upload{}, apperr.New(apperr.KindValidation, "File uploads are not enabled")
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, canvas.Upload{}, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, canvas.Upload{}, err
	}
	if rel, err := filepath.Rel(root, abs); err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return nil, canvas.Upload{}, apperr.New(apperr.KindValidation, "File not found. Please upload the file first.")
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, canvas.Upload{}, apperr.Wrap(apperr.KindNotFound, err, "File not found. Please upload the file first.")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, canvas.Upload{}, err
	}
	name := filepath.Base(abs)
	// Drop the uniqueness prefix added by SaveUpload.
	if i := strings.IndexByte(name, '_'); i == 8 {
		name = name[i+1:]
	}
	ct := mime.TypeByExtension(filepath.Ext(name))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return f, canvas.Upload{Name: name, ContentType: ct, Size: info.Size(), Body: f}, nil
}

func filePath() Property { return text("Path of a file previously sent to /upload-file") }

func uploadAssignmentFileTool() Definition {
	return Definition{
		Name:        UploadAssignmentFile,
		Description: "Upload a file and create an assignment that links to it",
		Mutating:    true,
		Internal:    true,
		Params: Schema{
			Properties: map[string]Property{
				"course_id":       courseID,
				"assignment_name": text("Assignment name"),
				"file_path":       filePath(),
				"points":          number("Points possible (default 100)"),
				"description":     text("Assignment description"),
			},
			Required: []string{"course_id", "assignment_name", "file_path"},
		},
		Run: func(ctx context.Context, env Env, a Args) (any, error) {
			cid, _ := a.Int64("course_id")
			f, up, err := openUpload(env.UploadDir, a.String("file_path"))
			if err != nil {
				return nil, err
			}
			defer f.Close()
			up.Folder = "Assignment Files"
			file, err := env.User.UploadCourseFile(ctx, cid, up)
			if err != nil {
				return nil, err
			}
			name := a.String("assignment_name")
			desc := fmt.Sprintf("%s\n\n<p><strong>Assignment File:</strong> <a href=%q>%s</a></p>",
				a.String("description"), file.URL, html.EscapeString(file.DisplayName))
			assignment, err := env.User.CreateAssignment(ctx, cid, canvas.AssignmentParams{
				Name:            name,
				Description:     desc,
				PointsPossible:  a.FloatOr("points", 100),
				SubmissionTypes: []string{"online_upload"},
			})
			if err != nil {
				return nil, err
			}
			return Upload{
				File:       file,
				Assignment: assignment,
				Message:    fmt.Sprintf("Assignment '%s' created with file attachment", name),
			}, nil
		},
	}
}

func uploadModuleFileTool() Definition {
	return Definition{
		Name:        UploadModuleFile,
		Description: "Upload a file and add it to a module",
		Mutating:    true,
		Internal:    true,
		Params: Schema{
			Properties: map[string]Property{
				"course_id": courseID,
				"module_id": moduleID,
				"file_path": filePath(),
				"title":     text("Title shown in the module"),
			},
			Required: []string{"course_id", "module_id", "file_path"},
		},
		Run: func(ctx context.Context, env Env, a Args) (any, error) {
			cid, _ := a.Int64("course_id")
			mid, _ := a.Int64("module_id")
			f, up, err := openUpload(env.UploadDir, a.String("file_path"))
			if err != nil {
				return nil, err
			}
			defer f.Close()
			up.Folder = "Module Files"
			file, err := env.User.UploadCourseFile(ctx, cid, up)
			if err != nil {
				return nil, err
			}
			title := a.StringOr("title", up.Name)
			item, err := env.User.AddModuleItem(ctx, cid, mid, canvas.ModuleItemParams{
				Type:      "File",
				ContentID: file.ID,
				Title:     title,
			})
			if err != nil {
				return nil, err
			}
			return Upload{File: file, ModuleItem: item, Message: fmt.Sprintf("File '%s' added to module", title)}, nil
		},
	}
}

func submitAssignmentFileTool() Definition {
	return Definition{
		Name:        SubmitAssignmentFile,
		Description: "Submit an assignment with an uploaded file",
		Mutating:    true,
		Internal:    true,
		Params: Schema{
			Properties: map[string]Property{
				"course_id":     courseID,
				"assignment_id": assignmentID,
				"file_path":     filePath(),
				"comment":       text("Submission comment"),
			},
			Required: []string{"course_id", "assignment_id", "file_path"},
		},
		Run: func(ctx context.Context, env Env, a Args) (any, error) {
			cid, _ := a.Int64("course_id")
			aid, _ := a.Int64("assignment_id")
			f, up, err := openUpload(env.UploadDir, a.String("file_path"))
			if err != nil {
				return nil, err
			}
			defer f.Close()
			file, err := env.User.UploadSubmissionFile(ctx, cid, aid, up)
			if err != nil {
				return nil, err
			}
			sub, err := env.User.SubmitAssignment(ctx, cid, aid, canvas.SubmissionParams{
				Type:    "online_upload",
				FileIDs: []int64{file.ID},
				Comment: a.String("comment"),
			})
			if err != nil {
				return nil, err
			}
			env.Logger.Info("assignment submitted with file",
				zap.Int64("course_id", cid),
				zap.Int64("assignment_id", aid),
				zap.Int64("file_id", file.ID))
			return Upload{File: file, Submission: sub, Message: "Assignment submitted with file: " + up.Name}, nil
		},
	}
}
