package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const keyPrefix = "prescriptions/"

// S3Config selects the bucket. Endpoint and PathStyle target MinIO or
// other S3-compatible servers; credentials come from the default chain.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
}

// S3Store keeps each blob as one object. The metadata travels as
// x-amz-meta-* headers on the object.
type S3Store struct {
	client *s3.Client
	bucket string
}

func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "ap-south-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

func objectKey(id string) string { return keyPrefix + id }

func (s *S3Store) Put(ctx context.Context, meta Metadata, content io.Reader) (*Metadata, error) {
	meta, data, err := prepare(meta, content)
	if err != nil {
		return nil, err
	}
	key := objectKey(meta.ID)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(meta.Size),
		ContentType:   aws.String(meta.ContentType),
		Metadata: map[string]string{
			"file-name":  meta.FileName,
			"owner-id":   meta.OwnerID,
			"created-by": meta.CreatedBy,
			"sha256":     meta.Hash,
			"created-at": strconv.FormatInt(meta.CreatedAt.Unix(), 10),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("put object %s: %w", key, err)
	}
	out := meta
	return &out, nil
}

func (s *S3Store) Get(ctx context.Context, id string) (io.ReadCloser, *Metadata, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(objectKey(id))})
	if err != nil {
		return nil, nil, mapError(err)
	}
	meta := fromObject(id, out.ContentLength, out.ContentType, out.Metadata)
	return out.Body, &meta, nil
}

func (s *S3Store) Head(ctx context.Context, id string) (*Metadata, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(objectKey(id))})
	if err != nil {
		return nil, mapError(err)
	}
	meta := fromObject(id, out.ContentLength, out.ContentType, out.Metadata)
	return &meta, nil
}

// Delete checks existence first because S3 deletes of missing keys succeed.
func (s *S3Store) Delete(ctx context.Context, id string) error {
	if _, err := s.Head(ctx, id); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(objectKey(id))})
	if err != nil {
		return mapError(err)
	}
	return nil
}

func mapError(err error) error {
	var re *awshttp.ResponseError
	if errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound {
		return ErrBlobNotFound
	}
	return err
}

func metaValue(md map[string]string, key string) string {
	for k, v := range md {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func fromObject(id string, size *int64, contentType *string, md map[string]string) Metadata {
	meta := Metadata{
		ID:          id,
		Size:        aws.ToInt64(size),
		ContentType: aws.ToString(contentType),
		FileName:    metaValue(md, "file-name"),
		OwnerID:     metaValue(md, "owner-id"),
		CreatedBy:   metaValue(md, "created-by"),
		Hash:        metaValue(md, "sha256"),
	}
	if sec, err := strconv.ParseInt(metaValue(md, "created-at"), 10, 64); err == nil {
		meta.CreatedAt = time.Unix(sec, 0).UTC()
	}
	return meta
}
