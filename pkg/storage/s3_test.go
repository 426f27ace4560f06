package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// memS3 is an in-memory S3Client for exercising S3Archive without a
// network.
type memS3 struct {
	objects map[string][]byte
}

func newMemS3() *memS3 {
	return &memS3{objects: make(map[string][]byte)}
}

type s3NotFound struct{}

func (s3NotFound) Error() string                 { return "NoSuchKey: the key does not exist" }
func (s3NotFound) ErrorCode() string             { return "NoSuchKey" }
func (s3NotFound) ErrorMessage() string          { return "the key does not exist" }
func (s3NotFound) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

func (m *memS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := m.objects[*params.Key]
	if !ok {
		return nil, s3NotFound{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *memS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.objects[*params.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *memS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(m.objects, *params.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *memS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := m.objects[*params.Key]; !ok {
		return nil, s3NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3ArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := NewS3(newMemS3(), "ads", "images")

	if err := a.Save(ctx, "rounds/r1/image-1.png", []byte("png bytes")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := a.Load(ctx, "rounds/r1/image-1.png")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "png bytes" {
		t.Fatalf("Load = %q", got)
	}

	ok, err := a.Exists(ctx, "rounds/r1/image-1.png")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
}

func TestS3ArchivePrefix(t *testing.T) {
	ctx := context.Background()
	client := newMemS3()
	a := NewS3(client, "ads", "images")

	if err := a.Save(ctx, "x.png", []byte("v")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, ok := client.objects["images/x.png"]; !ok {
		t.Fatalf("object keys = %v, want prefix applied", client.objects)
	}
}

func TestS3ArchiveLoadMissing(t *testing.T) {
	a := NewS3(newMemS3(), "ads", "")
	_, err := a.Load(context.Background(), "nope.png")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want os.ErrNotExist", err)
	}
}

func TestS3ArchiveDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	a := NewS3(newMemS3(), "ads", "")

	if err := a.Save(ctx, "x.png", []byte("v")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	for range 2 {
		if err := a.Delete(ctx, "x.png"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
	}
	ok, err := a.Exists(ctx, "x.png")
	if err != nil || ok {
		t.Fatalf("Exists after delete = %v, %v", ok, err)
	}
}
