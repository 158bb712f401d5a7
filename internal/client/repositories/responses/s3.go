package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"github.com/dmitrijs2005/saltkeeper/internal/records"
)

// S3API is the part of *s3.Client the repository uses.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config configures NewS3Client. Endpoint is set for S3 compatible
// services (MinIO), which also switches to path-style addressing.
type S3Config struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// NewS3Client builds an S3 client. Without static credentials the default
// AWS chain (env, shared config, instance role) is used.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3Repository stores one JSON object per record under prefix+key.ID().
// Object keys sort like record IDs, so ListObjectsV2 order is the cursor
// order.
type S3Repository struct {
	client S3API
	bucket string
	prefix string
}

func NewS3Repository(client S3API, bucket, prefix string) (*S3Repository, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is not set: %w", common.ErrorValidation)
	}
	return &S3Repository{client: client, bucket: bucket, prefix: prefix}, nil
}

type s3Object struct {
	Namespace     string  `json:"namespace"`
	Primary       string  `json:"primary"`
	Secondary     string  `json:"secondary"`
	FormatVersion string  `json:"formatVersion"`
	Ciphertext    string  `json:"ciphertext"`
	IV            string  `json:"iv"`
	AuthTag       string  `json:"authTag"`
	IntegrityHash string  `json:"integrityHash"`
	SaltRef       *string `json:"saltRef"`
	CreatedAtMs   int64   `json:"createdAtMs"`
}

func toObject(s *records.Stored) s3Object {
	return s3Object{
		Namespace:     s.Key.Namespace,
		Primary:       s.Key.Primary,
		Secondary:     s.Key.Secondary,
		FormatVersion: string(s.Format),
		Ciphertext:    s.Ciphertext,
		IV:            s.IV,
		AuthTag:       s.AuthTag,
		IntegrityHash: s.IntegrityHash,
		SaltRef:       s.SaltRef,
		CreatedAtMs:   s.CreatedAt.UnixMilli(),
	}
}

func (o s3Object) stored() *records.Stored {
	return &records.Stored{
		Key:           records.LogicalKey{Namespace: o.Namespace, Primary: o.Primary, Secondary: o.Secondary},
		Format:        records.Format(o.FormatVersion),
		Ciphertext:    o.Ciphertext,
		IV:            o.IV,
		AuthTag:       o.AuthTag,
		IntegrityHash: o.IntegrityHash,
		SaltRef:       o.SaltRef,
		CreatedAt:     time.UnixMilli(o.CreatedAtMs).UTC(),
	}
}

func (r *S3Repository) objectKey(id string) string { return r.prefix + id }

func (r *S3Repository) put(ctx context.Context, s *records.Stored, ifMatch *string) error {
	body, err := json.Marshal(toObject(s))
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(r.objectKey(s.Key.ID())),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		IfMatch:     ifMatch,
	})
	if err != nil {
		return classifyS3Error(err, "put")
	}
	return nil
}

// get returns the record and its ETag.
func (r *S3Repository) get(ctx context.Context, objectKey string) (*records.Stored, *string, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, nil, classifyS3Error(err, "get")
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response object: %w", err)
	}
	var o s3Object
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, nil, fmt.Errorf("decode response object %s: %w", objectKey, err)
	}
	return o.stored(), out.ETag, nil
}

func (r *S3Repository) Put(ctx context.Context, s *records.Stored) error {
	if err := s.Key.Validate(); err != nil {
		return err
	}
	return r.put(ctx, s, nil)
}

func (r *S3Repository) Get(ctx context.Context, key records.LogicalKey) (*records.Stored, error) {
	s, _, err := r.get(ctx, r.objectKey(key.ID()))
	return s, err
}

// Delete checks for the object first: S3 deletes are silent about
// missing keys.
func (r *S3Repository) Delete(ctx context.Context, key records.LogicalKey) error {
	k := r.objectKey(key.ID())
	if _, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(r.bucket), Key: aws.String(k)}); err != nil {
		return classifyS3Error(err, "head")
	}
	if _, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(r.bucket), Key: aws.String(k)}); err != nil {
		return classifyS3Error(err, "delete")
	}
	return nil
}

// walk visits objects in key order after the cursor until fn returns false.
func (r *S3Repository) walk(ctx context.Context, after string, fn func(*records.Stored) bool) error {
	in := &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(r.prefix),
	}
	if after != "" {
		in.StartAfter = aws.String(r.objectKey(after))
	}

	for {
		page, err := r.client.ListObjectsV2(ctx, in)
		if err != nil {
			return classifyS3Error(err, "list")
		}
		for _, obj := range page.Contents {
			s, _, err := r.get(ctx, aws.ToString(obj.Key))
			if errors.Is(err, common.ErrorNotFound) {
				// deleted since listing
				continue
			}
			if err != nil {
				return err
			}
			if !fn(s) {
				return nil
			}
		}
		if !aws.ToBool(page.IsTruncated) || page.NextContinuationToken == nil {
			return nil
		}
		in.ContinuationToken = page.NextContinuationToken
	}
}

func (r *S3Repository) ListLegacy(ctx context.Context, after string, limit int) ([]*records.Stored, error) {
	var out []*records.Stored
	if limit <= 0 {
		return out, nil
	}
	err := r.walk(ctx, after, func(s *records.Stored) bool {
		if s.Format == records.FormatLegacy {
			out = append(out, s)
		}
		return len(out) < limit
	})
	return out, err
}

// ReplaceLegacy re-reads the object and writes the replacement with
// If-Match on the ETag it saw, so a concurrent writer makes the put fail.
func (r *S3Repository) ReplaceLegacy(ctx context.Context, old, next *records.Stored) error {
	if old.Key != next.Key {
		return fmt.Errorf("replace %s with %s: %w", old.Key, next.Key, common.ErrorValidation)
	}

	cur, etag, err := r.get(ctx, r.objectKey(old.Key.ID()))
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrVersionConflict
	}
	if err != nil {
		return err
	}
	if cur.Format != records.FormatLegacy || cur.IntegrityHash != old.IntegrityHash {
		return common.ErrVersionConflict
	}

	err = r.put(ctx, next, etag)
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrVersionConflict
	}
	return err
}

func (r *S3Repository) CountLegacy(ctx context.Context) (int64, error) {
	var n int64
	err := r.walk(ctx, "", func(s *records.Stored) bool {
		if s.Format == records.FormatLegacy {
			n++
		}
		return true
	})
	return n, err
}

func classifyS3Error(err error, operation string) error {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return common.ErrorNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch code := apiErr.ErrorCode(); {
		case code == "PreconditionFailed", code == "ConditionalRequestConflict":
			return common.ErrVersionConflict
		case code == "NoSuchKey", code == "NotFound":
			return common.ErrorNotFound
		case strings.HasPrefix(code, "NoSuchBucket"):
			return fmt.Errorf("s3 %s: bucket missing: %w", operation, err)
		}
	}
	return fmt.Errorf("s3 %s: %w", operation, err)
}
