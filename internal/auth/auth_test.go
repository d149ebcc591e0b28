package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanziv9999/GharkoSwad/internal/apperr"
	"github.com/sanziv9999/GharkoSwad/internal/auth"
	"github.com/sanziv9999/GharkoSwad/internal/identity"
	"github.com/sanziv9999/GharkoSwad/internal/models"
)

const testSecret = "test-secret-key"

type stubUsers map[uint]identity.User

func (s stubUsers) GetUser(_ context.Context, id uint) (identity.User, error) {
	if id == 99 {
		return identity.User{}, apperr.Wrap(apperr.CodeDependency, errors.New("connection refused"), "load user")
	}
	u, ok := s[id]
	if !ok {
		return identity.User{}, apperr.Newf(apperr.CodeNotFound, "user not found: %d", id)
	}
	return u, nil
}

func setupAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	users := stubUsers{7: {ID: 7, Name: "chef", Role: models.RoleChef}}

	r := gin.New()
	r.Use(sessions.Sessions(auth.SessionName, cookie.NewStore([]byte(testSecret))))
	r.GET("/me", auth.RequireActor(users), func(c *gin.Context) {
		actor, ok := auth.ActorFrom(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": actor.ID, "role": actor.Role})
	})
	return r
}

func sessionCookie(userID uint) string {
	tempW := httptest.NewRecorder()
	tempC, _ := gin.CreateTestContext(tempW)
	tempC.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	sessions.Sessions(auth.SessionName, cookie.NewStore([]byte(testSecret)))(tempC)

	session := sessions.Default(tempC)
	session.Set(auth.SessionKey, userID)
	_ = session.Save()

	return tempW.Header().Get("Set-Cookie")
}

func get(r *gin.Engine, userID uint) (*httptest.ResponseRecorder, map[string]any) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if userID != 0 {
		req.Header.Set("Cookie", sessionCookie(userID))
	}
	r.ServeHTTP(rec, req)

	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestRequireActor(t *testing.T) {
	r := setupAuthRouter()

	t.Run("resolves the session user", func(t *testing.T) {
		rec, body := get(r, 7)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "CHEF", body["role"])
	})

	tests := []struct {
		name    string
		userID  uint
		status  int
		message string
	}{
		{"no session", 0, http.StatusUnauthorized, "unauthorized"},
		{"unknown user", 42, http.StatusUnauthorized, "unauthorized"},
		{"lookup failure", 99, http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := get(r, tt.userID)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, tt.message, body["message"])
			data, ok := body["data"]
			assert.True(t, ok, "envelope carries data")
			assert.Nil(t, data)
		})
	}
}
