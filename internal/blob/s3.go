package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"articlehub/internal/store"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Config describes the bucket payloads are written to. Endpoint is only set
// for S3-compatible servers and switches to path-style addressing.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Container string
}

// S3Store keeps payloads as objects under "<container>/<key>". Locators look
// like s3://<bucket>/article/<key>.
type S3Store struct {
	svc       *s3.S3
	bucket    string
	container string
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	awsCfg := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	container := cfg.Container
	if container == "" {
		container = DefaultContainer
	}
	return &S3Store{svc: s3.New(sess), bucket: cfg.Bucket, container: container}, nil
}

func (s *S3Store) Upload(ctx context.Context, content string, key string) (string, error) {
	objectKey := s.container + "/" + key
	_, err := s.svc.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader([]byte(content)),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return "", store.Unavailable("s3 upload", err)
	}
	return s.locator(objectKey), nil
}

func (s *S3Store) Fetch(ctx context.Context, locator string) (string, error) {
	objectKey, err := s.objectKey(locator)
	if err != nil {
		return "", err
	}

	out, err := s.svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if isNotFound(err) {
		return "", fmt.Errorf("%s: %w", locator, ErrNotFound)
	} else if err != nil {
		return "", store.Unavailable("s3 fetch", err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return "", store.Unavailable("s3 fetch", err)
	}
	return string(body), nil
}

func (s *S3Store) List(ctx context.Context) ([]string, error) {
	var locators []string
	err := s.svc.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.container + "/"),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			locators = append(locators, s.locator(aws.StringValue(obj.Key)))
		}
		return true
	})
	if err != nil {
		return nil, store.Unavailable("s3 list", err)
	}
	return locators, nil
}

func (s *S3Store) Delete(ctx context.Context, locator string) error {
	objectKey, err := s.objectKey(locator)
	if err != nil {
		return err
	}
	_, err = s.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil && !isNotFound(err) {
		return store.Unavailable("s3 delete", err)
	}
	return nil
}

func (s *S3Store) locator(objectKey string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, objectKey)
}

func (s *S3Store) objectKey(locator string) (string, error) {
	objectKey, ok := strings.CutPrefix(locator, fmt.Sprintf("s3://%s/", s.bucket))
	if !ok || !strings.HasPrefix(objectKey, s.container+"/") || len(objectKey) == len(s.container)+1 {
		return "", fmt.Errorf("%q: %w", locator, ErrInvalidLocator)
	}
	return objectKey, nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return true
	}
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey
}
