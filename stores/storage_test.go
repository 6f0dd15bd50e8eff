package stores

import (
	"context"
	"path/filepath"
	"testing"

	"spice-taste/config"
	"spice-taste/core"
)

func TestGetStore_Backends(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	tests := []struct {
		name string
		cfg  config.StorageConfig
	}{
		{"default memory", config.StorageConfig{}},
		{"unknown falls back to memory", config.StorageConfig{Type: "redis"}},
		{"filesystem", config.StorageConfig{Type: "filesystem", LocalStoragePath: filepath.Join(dir, "fs")}},
		{"sqlite", config.StorageConfig{Type: "sqlite", DataSourceName: filepath.Join(dir, "spice.db")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := GetStore(ctx, tt.cfg)
			if err != nil {
				t.Fatalf("GetStore() failed: %v", err)
			}
			defer store.Close(ctx)

			coll := store.Collection(core.CommentCollection)
			inserted, err := coll.InsertOne(ctx, core.Document{"blogId": "b1", "comment": "nice"})
			if err != nil {
				t.Fatalf("InsertOne() failed: %v", err)
			}
			id, ok := inserted.InsertedID.(string)
			if !ok {
				t.Fatalf("InsertedID = %T, want string", inserted.InsertedID)
			}
			if _, err := store.ParseID(id); err != nil {
				t.Errorf("ParseID(%q) failed: %v", id, err)
			}

			docs, err := coll.Find(ctx, core.Filter{"blogId": "b1"}, nil)
			if err != nil {
				t.Fatalf("Find() failed: %v", err)
			}
			if len(docs) != 1 {
				t.Errorf("Find() returned %d docs, want 1", len(docs))
			}
		})
	}
}
