package s3

import (
	"bytes"
	"context"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/plantshare/pkg/remote"
)

// 📤 DocumentServer puts staged projects into a bucket object by object
type DocumentServer struct {
	session *Session
	id      uuid.UUID
	now     func() time.Time
}

func newDocumentServer(s *Session) *DocumentServer {
	return &DocumentServer{session: s, id: uuid.New(), now: time.Now}
}

func (d *DocumentServer) InstanceID() uuid.UUID {
	return d.id
}

// SignIn checks the credentials still work
func (d *DocumentServer) SignIn(ctx context.Context) error {
	if _, err := d.session.api.ListBuckets(ctx, &s3.ListBucketsInput{}); err != nil {
		return errors.Errorf("signing in document server: %w", err)
	}
	return nil
}

// Upload puts every staged file and the share manifest under
// <project>/<folder>/<project name>/
func (d *DocumentServer) Upload(ctx context.Context, req remote.UploadRequest) (*remote.UploadReceipt, error) {
	logger := zerolog.Ctx(ctx)
	bucket := req.Target.Hub.ID
	base := path.Join(req.Target.Project.ID, req.Prefix())

	files, err := remote.StagedFiles(ctx, req.Root)
	if err != nil {
		return nil, err
	}

	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, errors.Errorf("uploading project: %w", err)
		}
		data, err := os.ReadFile(filepath.Join(req.Root, filepath.FromSlash(rel)))
		if err != nil {
			return nil, errors.Errorf("reading %s: %w", rel, err)
		}
		key := path.Join(base, rel)
		if err := d.put(ctx, bucket, key, data, mimetype.Detect(data).String()); err != nil {
			return nil, errors.Errorf("uploading %s: %w", rel, err)
		}
		logger.Debug().Str("key", key).Int("bytes", len(data)).Msg("uploaded object")
	}

	manifest, err := remote.BuildManifest(req, files, d.now())
	if err != nil {
		return nil, err
	}
	if err := d.put(ctx, bucket, path.Join(base, remote.ManifestPath), manifest, "application/json"); err != nil {
		return nil, errors.Errorf("uploading manifest: %w", err)
	}

	return &remote.UploadReceipt{
		Files:    len(files),
		Location: "s3://" + bucket + "/" + base + "/",
		Paths:    files,
	}, nil
}

func (d *DocumentServer) put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := d.session.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"plantshare-instance": d.id.String(),
		},
	})
	return err
}
