// Package blobsvc stores generated report files on disk or in an S3 bucket.
package blobsvc

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"github.com/trezcool/kaushal/core"
	"github.com/trezcool/kaushal/core/institution"
)

// DirWriter writes files into a local directory.
type DirWriter struct {
	Dir string
}

var _ institution.ReportWriter = (*DirWriter)(nil)

func NewDirWriter(dir string) *DirWriter {
	if dir == "" {
		dir = "."
	}
	return &DirWriter{Dir: dir}
}

func (w *DirWriter) WriteReport(_ context.Context, name string, data []byte) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return errors.Wrap(err, "creating report directory")
	}
	return errors.Wrap(os.WriteFile(filepath.Join(w.Dir, filepath.Base(name)), data, 0o644), "writing report")
}

// ObjectPutter is the part of the S3 client the writer needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Writer uploads files under a key prefix of a bucket.
type S3Writer struct {
	client ObjectPutter
	bucket string
	prefix string
}

var _ institution.ReportWriter = (*S3Writer)(nil)

func NewS3Writer(client ObjectPutter, bucket, prefix string) *S3Writer {
	return &S3Writer{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// NewS3Client builds a client from the default AWS credential chain.
// A custom endpoint (minio, localstack) switches to path-style addressing.
func NewS3Client(ctx context.Context, conf *core.Config) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(conf.Reports.S3Region))
	if err != nil {
		return nil, errors.Wrap(err, "loading aws config")
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if conf.Reports.S3Endpoint != "" {
			o.UsePathStyle = true
			o.BaseEndpoint = aws.String(conf.Reports.S3Endpoint)
		}
	}), nil
}

// ParseS3Target splits "bucket/some/prefix" into its bucket and key prefix.
func ParseS3Target(target string) (bucket, prefix string, err error) {
	target = strings.TrimPrefix(strings.TrimSpace(target), "s3://")
	parts := strings.SplitN(target, "/", 2)
	if parts[0] == "" {
		return "", "", errors.New("missing bucket name")
	}
	if len(parts) == 2 {
		prefix = strings.Trim(parts[1], "/")
	}
	return parts[0], prefix, nil
}

func (w *S3Writer) key(name string) string {
	if w.prefix == "" {
		return name
	}
	return path.Join(w.prefix, name)
}

func (w *S3Writer) WriteReport(ctx context.Context, name string, data []byte) error {
	_, err := w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(w.key(name)),
		Body:        strings.NewReader(string(data)),
		ContentType: aws.String("application/json"),
	})
	return errors.Wrapf(err, "uploading s3://%s/%s", w.bucket, w.key(name))
}
