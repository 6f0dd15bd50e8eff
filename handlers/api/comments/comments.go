// Package comments serves blog comments. Comments are never deduplicated and
// their blogId is not checked against the blogs collection.
package comments

import (
	"net/http"

	"spice-taste/core"
	"spice-taste/handlers/api/resource"
)

func HandleCreate(store core.DocumentStore) http.HandlerFunc {
	return resource.HandleCreate(store.Collection(core.CommentCollection))
}

// HandleListByBlog returns the comments whose blogId equals the path parameter exactly.
func HandleListByBlog(store core.DocumentStore) http.HandlerFunc {
	coll := store.Collection(core.CommentCollection)
	return func(w http.ResponseWriter, r *http.Request) {
		blogID, err := resource.PathParam(r, "blogId")
		if err != nil {
			resource.RenderError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		resource.HandleFind(coll, func(*http.Request) core.Filter {
			return core.Filter{"blogId": blogID}
		})(w, r)
	}
}
