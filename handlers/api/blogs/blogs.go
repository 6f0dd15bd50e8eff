package blogs

import (
	"net/http"

	"spice-taste/core"
	"spice-taste/handlers/api/resource"
)

// Identity are the fields that make two posts the same post.
var Identity = []string{"email", "name", "des", "docs", "image"}

func HandleCreate(store core.DocumentStore) http.HandlerFunc {
	return resource.HandleCreateUnique(store.Collection(core.BlogCollection), Identity...)
}

func HandleList(store core.DocumentStore) http.HandlerFunc {
	return resource.HandleFind(store.Collection(core.BlogCollection), nil)
}
