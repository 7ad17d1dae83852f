package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/iliyamo/videotube-api/internal/config"
)

type fakeS3 struct {
	err   error
	input *s3.PutObjectInput
	body  []byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	if in.Body != nil {
		f.body, _ = io.ReadAll(in.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestS3Uploader_Upload(t *testing.T) {
	fake := &fakeS3{}
	u := newS3Uploader(fake, appconfig.S3Config{Bucket: "media", Region: "eu-west-1"})
	u.now = func() time.Time { return time.Date(2024, 2, 9, 0, 0, 0, 0, time.UTC) }
	path := writeTemp(t, "avatar.PNG", "png-bytes")

	url, err := u.Upload(context.Background(), path)
	require.NoError(t, err)

	require.NotNil(t, fake.input)
	assert.Equal(t, "media", *fake.input.Bucket)
	assert.Regexp(t, `^media/2024/02/[0-9a-f-]{36}\.png$`, *fake.input.Key)
	assert.Equal(t, "image/png", *fake.input.ContentType)
	assert.Equal(t, int64(len("png-bytes")), *fake.input.ContentLength)
	assert.Equal(t, "png-bytes", string(fake.body))
	assert.Equal(t, "https://media.s3.eu-west-1.amazonaws.com/"+*fake.input.Key, url)
	assert.FileExists(t, path)
}

func TestS3Uploader_FailureRemovesLocalFile(t *testing.T) {
	fake := &fakeS3{err: errors.New("access denied")}
	u := newS3Uploader(fake, appconfig.S3Config{Bucket: "media"})
	path := writeTemp(t, "cover.jpg", "jpeg")

	_, err := u.Upload(context.Background(), path)
	require.Error(t, err)
	assert.NoFileExists(t, path)
}

func TestS3Uploader_MissingFile(t *testing.T) {
	u := newS3Uploader(&fakeS3{}, appconfig.S3Config{Bucket: "media"})

	_, err := u.Upload(context.Background(), filepath.Join(t.TempDir(), "gone.png"))
	assert.Error(t, err)

	_, err = u.Upload(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoFile)
}

func TestPublicBaseURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com",
		publicBaseURL(appconfig.S3Config{Bucket: "b", PublicBaseURL: "https://cdn.example.com/"}))
	assert.Equal(t, "http://127.0.0.1:9000/b",
		publicBaseURL(appconfig.S3Config{Bucket: "b", Endpoint: "http://127.0.0.1:9000/"}))
	assert.Equal(t, "https://b.s3.us-east-1.amazonaws.com",
		publicBaseURL(appconfig.S3Config{Bucket: "b", Region: "us-east-1"}))
}
