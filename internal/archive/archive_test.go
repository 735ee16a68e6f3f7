package archive

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/septivank/meter-report-service/internal/export"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3Archiver_Key(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"exports", "exports/reports_20240305_090001.csv"},
		{"/exports/daily/", "exports/daily/reports_20240305_090001.csv"},
		{"", "reports_20240305_090001.csv"},
	}

	for _, tt := range tests {
		a := newS3Archiver(&fakeS3{}, "bucket", tt.prefix, zap.NewNop())
		assert.Equal(t, tt.want, a.Key("reports_20240305_090001.csv"))
	}
}

func TestS3Archiver_Archive(t *testing.T) {
	client := &fakeS3{}
	a := newS3Archiver(client, "reports-bucket", "exports", zap.NewNop())

	file := &export.File{Data: []byte("a,b\n"), ContentType: "text/csv", FileName: "reports_20240305_090001.csv"}
	require.NoError(t, a.Archive(context.Background(), file))

	require.NotNil(t, client.input)
	assert.Equal(t, "reports-bucket", aws.ToString(client.input.Bucket))
	assert.Equal(t, "exports/reports_20240305_090001.csv", aws.ToString(client.input.Key))
	assert.Equal(t, "text/csv", aws.ToString(client.input.ContentType))
	assert.Equal(t, file.Data, client.body)
}

func TestS3Archiver_ArchiveError(t *testing.T) {
	a := newS3Archiver(&fakeS3{err: errors.New("access denied")}, "b", "", zap.NewNop())

	err := a.Archive(context.Background(), &export.File{FileName: "x.txt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestNew_WithoutBucketIsNop(t *testing.T) {
	a, err := New(context.Background(), Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, NopArchiver{}, a)
	assert.NoError(t, a.Archive(context.Background(), &export.File{}))
}
