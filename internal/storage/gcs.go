package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	gcs "cloud.google.com/go/storage"
	"github.com/yoockh/livecoach/internal/utils"
)

type GCSUploader struct {
	client *gcs.Client
	bucket string

	// PublicRead grants allUsers read access so the web client can fetch
	// the object directly.
	PublicRead bool
}

func NewGCSUploader(ctx context.Context, bucket string) (*GCSUploader, error) {
	c, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSUploader{client: c, bucket: bucket}, nil
}

func (u *GCSUploader) Close() error { return u.client.Close() }

func (u *GCSUploader) UploadFile(ctx context.Context, localPath, objectName string) (string, error) {
	const op = "GCSUploader.UploadFile"

	f, err := os.Open(localPath)
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to open local file", err)
	}
	defer f.Close()

	obj := u.client.Bucket(u.bucket).Object(objectName)
	w := obj.NewWriter(ctx)
	w.ContentType = contentType(localPath)

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", utils.E(utils.CodeUnavailable, op, "upload failed", err)
	}
	if err := w.Close(); err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "upload failed", err)
	}

	if u.PublicRead {
		if err := obj.ACL().Set(ctx, gcs.AllUsers, gcs.RoleReader); err != nil {
			return "", utils.E(utils.CodeUnavailable, op, "failed to set object acl", err)
		}
	}

	return objectURL(u.bucket, objectName), nil
}

func objectURL(bucket, objectName string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, objectName)
}
var _ Uploader = (*GCSUploader)(nil)
