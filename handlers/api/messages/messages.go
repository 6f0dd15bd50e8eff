package messages

import (
	"net/http"

	"spice-taste/core"
	"spice-taste/handlers/api/resource"
)

// Identity are the fields that make two messages the same message.
var Identity = []string{"email", "message", "contact", "image"}

func HandleCreate(store core.DocumentStore) http.HandlerFunc {
	return resource.HandleCreateUnique(store.Collection(core.MessageCollection), Identity...)
}

func HandleList(store core.DocumentStore) http.HandlerFunc {
	return resource.HandleFind(store.Collection(core.MessageCollection), nil)
}
