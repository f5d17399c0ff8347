package auth

import (
	"testing"
	"time"

	"github.com/RichardoC/lms-chat/internal/apperr"
	"github.com/RichardoC/lms-chat/internal/canvas"
	"github.com/RichardoC/lms-chat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)

	token, expires, err := issuer.Issue("jdoe", 42, models.RoleTeacher)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "jdoe", claims.Username)
	assert.Equal(t, int64(42), claims.CanvasUserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
	assert.Equal(t, "42", claims.Subject)
}

func TestVerifyRejects(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)
	token, _, err := issuer.Issue("jdoe", 42, models.RoleStudent)
	require.NoError(t, err)

	t.Run("other secret", func(t *testing.T) {
		_, err := NewIssuer("other", time.Hour).Verify(token)
		assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
	})

	t.Run("expired", func(t *testing.T) {
		later := NewIssuer("secret", time.Hour)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Verify(token)
		assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
		assert.Contains(t, apperr.UserMessage(err), "expired")
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Verify("not.a.token")
		assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
	})
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", token)

	_, ok = BearerToken("Basic dXNlcjpwYXNz")
	assert.False(t, ok)
	_, ok = BearerToken("")
	assert.False(t, ok)
}

func TestRoleFromEnrollments(t *testing.T) {
	assert.Equal(t, models.RoleStudent, RoleFromEnrollments(nil))
	assert.Equal(t, models.RoleStudent, RoleFromEnrollments([]canvas.Enrollment{{Type: "StudentEnrollment"}, {Type: "ObserverEnrollment"}}))
	assert.Equal(t, models.RoleTeacher, RoleFromEnrollments([]canvas.Enrollment{{Type: "StudentEnrollment"}, {Type: "TaEnrollment"}}))
	assert.Equal(t, models.RoleTeacher, RoleFromEnrollments([]canvas.Enrollment{{Type: "TeacherEnrollment"}}))
}
