// Package s3backend is the concrete backend.Adapter (C8) implementation
// against any S3-compatible store, built on aws-sdk-go-v2's s3 client
// and its s3/manager package for multipart orchestration, the way the
// teacher's own object-storage packages wrap the AWS SDK behind a
// narrow interface rather than leaking SDK types into callers.
package s3backend

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"

	"github.com/storj-thirdparty/dataproxy/pkg/backend"
	"github.com/storj-thirdparty/dataproxy/pkg/dataproxyerrs"
	"github.com/storj-thirdparty/dataproxy/pkg/model"
)

// Backend implements backend.Adapter against a single S3-compatible
// endpoint, shared across every bucket the proxy serves. PutObject
// goes through an s3/manager.Uploader, which chunks and parallelizes
// large bodies on its own; the C7 writer pipeline bypasses it and
// drives CreateMultipartUpload/UploadPart/CompleteMultipartUpload
// directly, since it needs part boundaries to line up with its own
// transform-chain chunking, not whatever the manager would pick.
type Backend struct {
	client   *s3.Client
	uploader *manager.Uploader
}

// New builds a Backend pointed at endpoint (a custom MinIO/Ceph
// endpoint, or "" for real AWS) in region.
func New(ctx context.Context, endpoint, region string) (*Backend, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, dataproxyerrs.InternalError.Wrap(err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = true
	})

	return &Backend{client: client, uploader: manager.NewUploader(client)}, nil
}

var _ backend.Adapter = (*Backend)(nil)

func (b *Backend) PutObject(ctx context.Context, r io.Reader, loc *model.Location, contentLen int64) error {
	_, err := b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(loc.Bucket),
		Key:           aws.String(loc.Path),
		Body:          r,
		ContentLength: aws.Int64(contentLen),
	})
	if err != nil {
		return dataproxyerrs.BackendWriteFailed.Wrap(err)
	}
	return nil
}

func (b *Backend) GetObject(ctx context.Context, loc *model.Location, rng *backend.ByteRange, w io.Writer) error {
	input := &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Path),
	}
	if rng != nil {
		input.Range = aws.String(fmt.Sprintf("bytes=%d-%d", rng.Start, rng.End))
	}

	out, err := b.client.GetObject(ctx, input)
	if err != nil {
		return classifyGetErr(err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return dataproxyerrs.BackendWriteFailed.Wrap(err)
	}
	return nil
}

func (b *Backend) HeadObject(ctx context.Context, loc *model.Location) (int64, error) {
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Path),
	})
	if err != nil {
		return 0, classifyGetErr(err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

func (b *Backend) InitMultipartUpload(ctx context.Context, loc *model.Location) (string, error) {
	out, err := b.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Path),
	})
	if err != nil {
		return "", dataproxyerrs.BackendWriteFailed.Wrap(err)
	}
	return aws.ToString(out.UploadId), nil
}

func (b *Backend) UploadPart(ctx context.Context, r io.Reader, loc *model.Location, uploadID string, contentLen int64, partNumber int32) (backend.PartETag, error) {
	out, err := b.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(loc.Bucket),
		Key:           aws.String(loc.Path),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(partNumber),
		Body:          r,
		ContentLength: aws.Int64(contentLen),
	})
	if err != nil {
		return backend.PartETag{}, dataproxyerrs.BackendWriteFailed.Wrap(err)
	}
	return backend.PartETag{PartNumber: partNumber, ETag: aws.ToString(out.ETag)}, nil
}

func (b *Backend) FinishMultipartUpload(ctx context.Context, loc *model.Location, parts []backend.PartETag, uploadID string) error {
	completed := make([]types.CompletedPart, len(parts))
	for i, p := range parts {
		completed[i] = types.CompletedPart{
			PartNumber: aws.Int32(p.PartNumber),
			ETag:       aws.String(p.ETag),
		}
	}

	_, err := b.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(loc.Bucket),
		Key:             aws.String(loc.Path),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return dataproxyerrs.BackendWriteFailed.Wrap(err)
	}
	return nil
}

func (b *Backend) CreateBucket(ctx context.Context, bucket string) error {
	_, err := b.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		return dataproxyerrs.BackendWriteFailed.Wrap(err)
	}
	return nil
}

func (b *Backend) CheckAndCreateBucket(ctx context.Context, bucket string) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	return b.CreateBucket(ctx, bucket)
}

func (b *Backend) DeleteObject(ctx context.Context, loc *model.Location) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Path),
	})
	if err != nil {
		return dataproxyerrs.BackendWriteFailed.Wrap(err)
	}
	return nil
}

// InitializeLocation derives a fresh Location for obj. Its disk path is
// hint when one is given; otherwise it is a freshly minted ULID, so
// concurrent re-uploads of the same object never collide on an
// in-flight multipart upload.
func (b *Backend) InitializeLocation(ctx context.Context, obj *model.Object, rawSize *int64, hint *string, isCompressed bool) (*model.Location, error) {
	loc := &model.Location{
		Bucket:       bucketForObject(obj),
		Path:         ulid.Make().String(),
		IsCompressed: isCompressed,
	}
	if rawSize != nil {
		loc.RawContentLen = *rawSize
	}
	if hint != nil {
		loc.Path = *hint
	}
	return loc, nil
}

func bucketForObject(obj *model.Object) string {
	if obj.IsPublic() {
		return "objects"
	}
	return "bundles"
}

// classifyGetErr maps a not-found response to dataproxyerrs.NoSuchKey
// so callers don't need to know about AWS SDK error types.
func classifyGetErr(err error) error {
	var nf *types.NoSuchKey
	if errors.As(err, &nf) {
		return dataproxyerrs.NoSuchKey.Wrap(err)
	}
	var nb *types.NotFound
	if errors.As(err, &nb) {
		return dataproxyerrs.NoSuchKey.Wrap(err)
	}
	return dataproxyerrs.BackendWriteFailed.Wrap(err)
}
