package users

import (
	"net/http"

	"spice-taste/core"
	"spice-taste/handlers/api/resource"
	"spice-taste/middleware"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// TokenIssuer is the part of auth.TokenService the login route needs.
type TokenIssuer interface {
	Issue(email string) (string, error)
}

type LoginResponse struct {
	Result *core.UpdateResult `json:"result"`
	Token  string             `json:"token"`
}

func collection(store core.DocumentStore) core.Collection {
	return store.Collection(core.UserCollection)
}

// HandleLogin upserts the profile keyed by the email path parameter and issues
// a token for that email. Posted fields overwrite stored ones; fields the body
// omits are left untouched.
func HandleLogin(store core.DocumentStore, tokens TokenIssuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, err := resource.PathParam(r, "email")
		if err != nil {
			resource.RenderError(w, r, http.StatusBadRequest, err.Error())
			return
		}

		profile, err := resource.DecodeDocument(w, r)
		if err != nil {
			resource.RenderError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if len(profile) == 0 {
			profile = core.Document{"email": email}
		}

		result, err := collection(store).UpdateOne(r.Context(),
			core.Filter{"email": email},
			profile,
			&core.UpdateOptions{Upsert: true},
		)
		if err != nil {
			resource.RenderStoreError(w, r, err, "save user", logrus.Fields{"email": email})
			return
		}

		token, err := tokens.Issue(email)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error": err,
				"email": email,
			}).Error("Failed to issue token")
			resource.RenderError(w, r, http.StatusInternalServerError, "Failed to issue token")
			return
		}

		logrus.WithField("email", email).Info("User logged in")
		render.JSON(w, r, LoginResponse{Result: result, Token: token})
	}
}

// HandleList returns every stored profile. It is mounted behind the bearer gate.
func HandleList(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, _ := middleware.EmailFromContext(r.Context())

		docs, err := collection(store).Find(r.Context(), core.Filter{}, nil)
		if err != nil {
			resource.RenderStoreError(w, r, err, "list users", logrus.Fields{"caller": caller})
			return
		}
		logrus.WithFields(logrus.Fields{
			"caller": caller,
			"count":  len(docs),
		}).Debug("Listed users")
		render.JSON(w, r, docs)
	}
}
