package stores

import (
	"context"

	"spice-taste/config"
	"spice-taste/core"
	"spice-taste/stores/aws"
	"spice-taste/stores/filesystem"
	"spice-taste/stores/memory"
	"spice-taste/stores/mongo"
	"spice-taste/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// GetStore opens the backend named by cfg.Type. Unknown or empty types fall back to memory.
func GetStore(ctx context.Context, cfg config.StorageConfig) (core.DocumentStore, error) {
	storageField := logrus.Fields{
		"storageType": cfg.Type,
	}

	var (
		store core.DocumentStore
		err   error
	)
	switch cfg.Type {
	case "mongodb":
		uri := cfg.MongoURI
		if uri == "" {
			uri = mongo.BuildURI(cfg.DBUser, cfg.DBPass, cfg.DBCluster)
		}
		storageField["database"] = cfg.DBName
		store, err = mongo.NewStore(ctx, uri, cfg.DBName)
	case "filesystem":
		storageField["basePath"] = cfg.LocalStoragePath
		store, err = filesystem.NewStore(cfg.LocalStoragePath)
	case "sqlite":
		storageField["dataSourceName"] = cfg.DataSourceName
		store, err = sqlite.NewStore(cfg.DataSourceName)
	case "s3":
		storageField["bucketName"] = cfg.S3BucketName
		store, err = aws.NewStore(ctx, cfg.S3BucketName)
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	if err != nil {
		return nil, err
	}

	logrus.WithFields(storageField).Info("Use storage")
	return store, nil
}
