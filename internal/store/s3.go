package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	pterrors "pytestlab/internal/errors"
)

// S3 stores each record's blob as one object and a small JSON sidecar
// object carrying {title, description} next to it, with the envelope
// under an adjacent key so envelopes sit side-by-side with results.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
	log    *logrus.Logger
}

type s3Meta struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// NewS3 loads the default AWS credential chain (environment, shared
// config, IMDS), the standard aws-sdk-go-v2 client construction shape.
// accessKey/secretKey are optional; when both are set they override the
// default chain with a static provider, for S3-compatible endpoints
// (e.g. a bench-local MinIO) that have no IMDS or shared profile to fall
// back to.
func NewS3(ctx context.Context, bucket, prefix, accessKey, secretKey string, log *logrus.Logger) (*S3, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, pterrors.NewConfigError("s3 store load aws config", err)
	}
	return &S3{client: s3.NewFromConfig(cfg), bucket: bucket, prefix: prefix, log: log}, nil
}

func (s *S3) blobKey(id string) string     { return fmt.Sprintf("%s/%s/blob", s.prefix, id) }
func (s *S3) metaKey(id string) string     { return fmt.Sprintf("%s/%s/meta.json", s.prefix, id) }
func (s *S3) envelopeKey(id string) string { return fmt.Sprintf("%s/%s/envelope", s.prefix, id) }

func (s *S3) Put(ctx context.Context, id, title, description string, blob []byte) (string, error) {
	if id == "" {
		id = uuid.New().String()
	}
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket), Key: aws.String(s.blobKey(id)), Body: bytes.NewReader(blob),
	}); err != nil {
		return "", pterrors.NewConfigError("s3 store put blob", err)
	}

	meta, err := json.Marshal(s3Meta{Title: title, Description: description})
	if err != nil {
		return "", pterrors.NewConfigError("s3 store marshal metadata", err)
	}
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket), Key: aws.String(s.metaKey(id)), Body: bytes.NewReader(meta),
	}); err != nil {
		return "", pterrors.NewConfigError("s3 store put metadata", err)
	}
	return id, nil
}

func (s *S3) PutEnvelope(ctx context.Context, id string, envelope []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket), Key: aws.String(s.envelopeKey(id)), Body: bytes.NewReader(envelope),
	})
	if err != nil {
		return pterrors.NewConfigError("s3 store put envelope", err)
	}
	return nil
}

func (s *S3) Get(ctx context.Context, id string) ([]byte, error) {
	return s.getObject(ctx, s.blobKey(id))
}

func (s *S3) GetEnvelope(ctx context.Context, id string) ([]byte, error) {
	return s.getObject(ctx, s.envelopeKey(id))
}

func (s *S3) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		return nil, pterrors.NewConfigError("s3 store get", err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// Search lists every metadata sidecar under the prefix and filters in
// memory; S3 has no query language, so this is necessarily an O(n)
// listing rather than an index lookup. Acceptable at the operator-latency
// scale this runtime targets; not a production search service.
func (s *S3) Search(ctx context.Context, query string) ([]Hit, error) {
	var hits []Hit
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket), Prefix: aws.String(s.prefix + "/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, pterrors.NewConfigError("s3 store list", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if len(key) < len("meta.json") || key[len(key)-len("meta.json"):] != "meta.json" {
				continue
			}
			blob, err := s.getObject(ctx, key)
			if err != nil {
				s.log.WithError(err).WithField("key", key).Warn("search skipped unreadable metadata")
				continue
			}
			var m s3Meta
			if err := json.Unmarshal(blob, &m); err != nil {
				continue
			}
			if containsFold(m.Title, query) || containsFold(m.Description, query) {
				id := idFromMetaKey(s.prefix, key)
				hits = append(hits, Hit{ID: id, Title: m.Title, Description: m.Description})
			}
		}
	}
	return hits, nil
}

func idFromMetaKey(prefix, key string) string {
	rest := key[len(prefix)+1:]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			return rest[:i]
		}
	}
	return rest
}

func (s *S3) Close() error { return nil }
