package storage

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"
)

// NewRawStore returns an S3Store for s3://bucket/prefix locations and a LocalStore otherwise
func NewRawStore(location, region string) (RawStore, error) {
	if strings.HasPrefix(location, "s3://") {
		bucket, prefix := splitS3URL(location)
		if bucket == "" {
			return nil, errors.Errorf("invalid S3 location %q", location)
		}
		sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
		if err != nil {
			return nil, errors.Wrap(err, "creating AWS session")
		}
		return NewS3Store(s3.New(sess), bucket, prefix), nil
	}
	return LocalStore{Dir: location}, nil
}

func splitS3URL(location string) (bucket, prefix string) {
	rest := strings.TrimPrefix(location, "s3://")
	parts := strings.SplitN(rest, "/", 2)
	bucket = parts[0]
	if len(parts) == 2 {
		prefix = parts[1]
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
	}
	return bucket, prefix
}

// LocalStore reads raw files from a directory
type LocalStore struct {
	Dir string
}

// Glob returns matching paths under Dir, sorted
func (s LocalStore) Glob(_ context.Context, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.Dir, pattern))
	if err != nil {
		return nil, errors.Wrapf(err, "bad pattern %q", pattern)
	}
	sort.Strings(matches)
	return matches, nil
}

// Open opens a path returned by Glob
func (s LocalStore) Open(_ context.Context, name string) (RawFile, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s LocalStore) Location() string {
	return s.Dir
}

// S3Store reads raw files from objects under a bucket prefix. Objects are downloaded
// to a temp file on Open since parquet needs random access.
type S3Store struct {
	client s3iface.S3API
	bucket string
	prefix string
}

// NewS3Store creates an S3Store over client
func NewS3Store(client s3iface.S3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

// Glob lists object keys directly under the prefix whose base name matches pattern
func (s *S3Store) Glob(ctx context.Context, pattern string) ([]string, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, errors.Wrapf(err, "bad pattern %q", pattern)
	}
	var keys []string
	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			key := aws.StringValue(obj.Key)
			rel := strings.TrimPrefix(key, s.prefix)
			if strings.Contains(rel, "/") {
				continue
			}
			if ok, _ := path.Match(pattern, rel); ok {
				keys = append(keys, key)
			}
		}
		return true
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing objects")
	}
	sort.Strings(keys)
	return keys, nil
}

// Open downloads the object to a temp file
func (s *S3Store) Open(ctx context.Context, key string) (RawFile, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "getting s3://%s/%s", s.bucket, key)
	}
	defer out.Body.Close()

	f, err := os.CreateTemp("", "raw-*-"+path.Base(key))
	if err != nil {
		return nil, errors.Wrap(err, "creating temp file")
	}
	tf := &tempFile{File: f}
	if _, err := io.Copy(f, out.Body); err != nil {
		tf.Close()
		return nil, errors.Wrapf(err, "downloading s3://%s/%s", s.bucket, key)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		tf.Close()
		return nil, errors.Wrap(err, "rewinding temp file")
	}
	return tf, nil
}

func (s *S3Store) Location() string {
	return "s3://" + s.bucket + "/" + s.prefix
}

// tempFile removes itself on Close
type tempFile struct {
	*os.File
}

func (t *tempFile) Close() error {
	err := t.File.Close()
	os.Remove(t.File.Name())
	return err
}
