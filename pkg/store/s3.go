package store

import (
	"bytes"
	"context"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/glorpus-work/imgfetch/pkg/errors"
	"github.com/glorpus-work/imgfetch/pkg/hash"
)

// S3API is the subset of the S3 client used by the S3 store.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Options configures the S3 client built by NewS3Client.
type S3Options struct {
	Region          string
	Endpoint        string
	UsePathStyle    bool
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Client builds an S3 client from the default AWS credential chain,
// overridden by static credentials and a custom endpoint when given.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	}), nil
}

var _ Store = (*S3)(nil)

// S3 stores images as objects under a key prefix of one bucket.
// PutObject replaces an object atomically, so no temp key is needed.
type S3 struct {
	NameLocks
	client S3API
	bucket string
	prefix string
}

// NewS3 returns an S3 store. prefix may be empty.
func NewS3(client S3API, bucket, prefix string) (*S3, error) {
	if bucket == "" {
		return nil, errors.ErrS3BucketEmpty
	}
	return &S3{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

func (s *S3) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Location returns the s3:// URI of name.
func (s *S3) Location(name string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.key(name))
}

func (s *S3) Exists(ctx context.Context, name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, ioError(err, "head %s", s.Location(name))
}

func (s *S3) ContentEquals(ctx context.Context, name string, candidate []byte) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return false, ioError(err, "get %s", s.Location(name))
	}
	defer func() { _ = out.Body.Close() }()

	existing, err := hash.FromReader(out.Body)
	if err != nil {
		return false, errors.Wrapf(err, "hash existing %s", s.Location(name))
	}
	return existing.Equal(hash.FromBytes(candidate)), nil
}

func (s *S3) Write(ctx context.Context, name string, data []byte) (*StoredImage, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	digest := hash.FromBytes(data)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:         aws.String(s.bucket),
		Key:            aws.String(s.key(name)),
		Body:           bytes.NewReader(data),
		ContentLength:  aws.Int64(int64(len(data))),
		ContentType:    aws.String(http.DetectContentType(data)),
		ChecksumSHA256: aws.String(base64.StdEncoding.EncodeToString(digest[:])),
	})
	if err != nil {
		return nil, ioError(err, "put %s", s.Location(name))
	}
	return &StoredImage{
		Name:     name,
		Location: s.Location(name),
		Size:     int64(len(data)),
		Digest:   digest,
	}, nil
}

// List returns the objects directly under the prefix.
func (s *S3) List(ctx context.Context) ([]StoredImage, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix + "/")
	}

	var images []StoredImage
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, ioError(err, "list s3://%s/%s", s.bucket, s.prefix)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), aws.ToString(input.Prefix))
			if validateName(name) != nil {
				continue
			}
			images = append(images, StoredImage{
				Name:     name,
				Location: s.Location(name),
				Size:     aws.ToInt64(obj.Size),
				ModTime:  aws.ToTime(obj.LastModified),
			})
		}
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Name < images[j].Name })
	return images, nil
}

func isNotFound(err error) bool {
	var notFound *s3types.NotFound
	if stderrors.As(err, &notFound) {
		return true
	}
	var noSuchKey *s3types.NoSuchKey
	if stderrors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
