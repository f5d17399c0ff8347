package tools

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RichardoC/lms-chat/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecureFilename(t *testing.T) {
	tests := map[string]string{
		"essay.pdf":             "essay.pdf",
		"../../etc/passwd.txt":  "passwd.txt",
		`C:\Users\me\notes.txt`: "notes.txt",
		"my report (v2).docx":   "my_report__v2_.docx",
	}
	for in, want := range tests {
		assert.Equal(t, want, SecureFilename(in), in)
	}
}

func TestSaveUpload(t *testing.T) {
	dir := t.TempDir()

	path, err := SaveUpload(dir, "notes.txt", strings.NewReader("hello"), 1<<20)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, "_notes.txt"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestSaveUploadRejects(t *testing.T) {
	dir := t.TempDir()

	_, err := SaveUpload(dir, "run.exe", strings.NewReader("MZ"), 1<<20)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = SaveUpload(dir, "big.txt", strings.NewReader(strings.Repeat("x", 11)), 10)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.True(t, errors.Is(err, ErrTooLarge))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected uploads leave nothing behind")
}

func TestSavedUploadReopens(t *testing.T) {
	dir := t.TempDir()

	path, err := SaveUpload(dir, "../../My Essay.pdf", strings.NewReader("%PDF-1.4"), 1<<20)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, "_My_Essay.pdf"))

	f, up, err := openUpload(dir, path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, "My_Essay.pdf", up.Name)
	assert.Equal(t, "application/pdf", up.ContentType)
	assert.EqualValues(t, 8, up.Size)

	_, err = SaveUpload(dir, "run.exe", strings.NewReader("MZ"), 1<<20)
	assert.Error(t, err)

	_, err = SaveUpload(dir, "big.txt", strings.NewReader(strings.Repeat("x", 2048)), 1024)
	assert.ErrorIs(t, err, ErrTooLarge)
	entries, _ := os.ReadDir(dir)
	assert.Len(t, entries, 1)
}

func TestUploadModuleFile(t *testing.T) {
	d, fc := newDispatcher(t, time.Second, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/courses/3/files":
			writeJSON(w, map[string]any{"upload_url": "http://" + r.Host + "/upload", "upload_params": map[string]string{"key": "k"}})
		case r.URL.Path == "/upload":
			assert.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "k", r.FormValue("key"))
			writeJSON(w, map[string]any{"id": 9, "display_name": "slides.pdf", "url": "https://files/9"})
		case strings.HasSuffix(r.URL.Path, "/modules/5/items"):
			writeJSON(w, map[string]any{"id": 77, "module_id": 5, "title": "slides.pdf", "type": "File", "content_id": 9})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	path, err := SaveUpload(d.uploadDir, "slides.pdf", strings.NewReader("%PDF-1.4"), 1<<20)
	require.NoError(t, err)

	res := d.Dispatch(context.Background(), teacher, Call{Name: UploadModuleFile, Args: Args{
		"course_id": 3, "module_id": 5, "file_path": path,
	}})

	require.True(t, res.OK(), res.Message)
	up := res.Data.(Upload)
	assert.Equal(t, int64(9), up.File.ID)
	assert.Equal(t, int64(77), up.ModuleItem.ID)
	assert.Equal(t, "File 'slides.pdf' added to module", up.Message)
	assert.Len(t, fc.methods(http.MethodPost), 3)
}

func TestStudentCannotUploadModuleFile(t *testing.T) {
	d, fc := newDispatcher(t, time.Second, nil)

	res := d.Dispatch(context.Background(), student, Call{Name: UploadModuleFile, Args: Args{
		"course_id": 3, "module_id": 5, "file_path": "x.pdf",
	}})

	assert.Equal(t, apperr.KindPermissionDenied, res.Kind)
	assert.Empty(t, fc.requests)
}
