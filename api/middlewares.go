package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/keepsakeprints/backend/api/apicommon"
	"github.com/keepsakeprints/backend/db"
	"github.com/keepsakeprints/backend/errors"
)

// authenticator is a middleware that validates the JWT token, decodes the
// user identifier from its userId claim, loads the user from the database and
// adds it to the request context for the next handlers.
func (a *API) authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			errors.ErrUnauthorized.Write(w)
			return
		}
		if token == nil || jwt.Validate(token, jwt.WithRequiredClaim("userId")) != nil {
			errors.ErrUnauthorized.Withf("userId claim not found in JWT token").Write(w)
			return
		}
		userID, ok := claims["userId"].(string)
		if !ok || userID == "" {
			errors.ErrUnauthorized.Withf("invalid userId claim").Write(w)
			return
		}
		user, err := a.db.User(userID)
		if err != nil {
			if err == db.ErrNotFound {
				errors.ErrUnauthorized.Withf("user not found").Write(w)
				return
			}
			errors.ErrGenericInternalServerError.Withf("could not retrieve user from database: %v", err).Write(w)
			return
		}
		// add the user to the context
		ctx := context.WithValue(r.Context(), apicommon.UserMetadataKey, *user)
		// token is authenticated, pass it through with the new context with the
		// user information
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// adminOnly gates a route group to users with the admin flag. It runs after
// the authenticator, so the user is already in the context.
func (a *API) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := apicommon.UserFromContext(r.Context())
		if !ok {
			errors.ErrUnauthorized.Write(w)
			return
		}
		if !user.Admin {
			errors.ErrNotAdmin.Withf("user %s is not an admin", user.ID).Write(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// makeToken creates a JWT token for the given user identifier, signed with
// the API secret and valid for the jwtExpiration period.
func (a *API) makeToken(userID string) (string, error) {
	j := jwt.New()
	if err := j.Set("userId", userID); err != nil {
		return "", err
	}
	if err := j.Set(jwt.ExpirationKey, time.Now().Add(jwtExpiration).UnixNano()); err != nil {
		return "", err
	}
	jmap, err := j.AsMap(context.Background())
	if err != nil {
		return "", err
	}
	_, token, err := a.auth.Encode(jmap)
	return token, err
}
