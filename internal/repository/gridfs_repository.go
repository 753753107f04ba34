package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/osvaldoandrade/flowdb/pkg/persistence"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type gridfsRepo struct {
	bucket *gridfs.Bucket
}

// NewGridFSRepository stores artifacts in the named GridFS bucket of db.
// Blob ids are the hex form of the GridFS ObjectID.
func NewGridFSRepository(db *mongo.Database, bucketName string) (BlobRepository, error) {
	opts := options.GridFSBucket()
	if bucketName != "" {
		opts.SetName(bucketName)
	}
	bucket, err := gridfs.NewBucket(db, opts)
	if err != nil {
		return nil, fmt.Errorf("gridfs bucket: %w", err)
	}
	return &gridfsRepo{bucket: bucket}, nil
}

func (r *gridfsRepo) Put(ctx context.Context, name string, data []byte) (string, error) {
	oid, err := r.bucket.UploadFromStream(name, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("gridfs upload %s: %w", name, err)
	}
	return oid.Hex(), nil
}

func (r *gridfsRepo) Get(ctx context.Context, id string) ([]byte, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("blob %s: %w", id, persistence.ErrNotFound)
	}
	var buf bytes.Buffer
	if _, err := r.bucket.DownloadToStream(oid, &buf); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, fmt.Errorf("blob %s: %w", id, persistence.ErrNotFound)
		}
		return nil, fmt.Errorf("gridfs download %s: %w", id, err)
	}
	return buf.Bytes(), nil
}

func (r *gridfsRepo) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("blob %s: %w", id, persistence.ErrNotFound)
	}
	if err := r.bucket.Delete(oid); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return fmt.Errorf("blob %s: %w", id, persistence.ErrNotFound)
		}
		return fmt.Errorf("gridfs delete %s: %w", id, err)
	}
	return nil
}
