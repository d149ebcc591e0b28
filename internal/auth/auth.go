// Package auth resolves the logged-in user from the session cookie. Login
// itself happens in the identity system, which writes user_id into the
// shared session.
package auth

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/sanziv9999/GharkoSwad/internal/apperr"
	"github.com/sanziv9999/GharkoSwad/internal/identity"
)

const (
	SessionName = "gosess"
	SessionKey  = "user_id"

	actorKey = "actor"
)

// RequireActor aborts with 401 unless the session carries a user id that
// resolves to a known user, and stores that user's Actor on the context.
func RequireActor(users identity.Lookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		userID, ok := sess.Get(SessionKey).(uint)
		if !ok || userID == 0 {
			abort(c, apperr.New(apperr.CodeUnauthorized, "unauthorized"))
			return
		}

		user, err := users.GetUser(c.Request.Context(), userID)
		if err != nil {
			if apperr.Is(err, apperr.CodeNotFound) {
				err = apperr.Wrap(apperr.CodeUnauthorized, err, "unauthorized")
			}
			abort(c, err)
			return
		}

		c.Set(actorKey, user.Actor())
		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	status := apperr.HTTPStatus(apperr.CodeOf(err))
	message := "unauthorized"
	if status >= http.StatusInternalServerError {
		message = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"status": "error", "message": message, "data": nil})
}

// ActorFrom returns the actor stored by RequireActor.
func ActorFrom(c *gin.Context) (identity.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return identity.Actor{}, false
	}
	actor, ok := v.(identity.Actor)
	return actor, ok
}
