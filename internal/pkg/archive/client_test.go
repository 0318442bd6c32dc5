package archive

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func TestObjectKey(t *testing.T) {
	at := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "callbacks/wechat/2026/03/PO1-0123456789abcdef.txt",
		ObjectKey("wechat", "PO1", "0123456789abcdef0123", at))
	assert.Equal(t, "callbacks/alipay/2026/03/unknown-abc.txt", ObjectKey("alipay", "", "abc", at))
}

func TestArchiveUploadsPayload(t *testing.T) {
	putter := &fakePutter{}
	at := time.Date(2026, 11, 2, 8, 0, 0, 0, time.UTC)
	c := NewClientWith(putter, "callbacks-bucket", time.Second, func() time.Time { return at })

	payload := []byte("<xml><out_trade_no>PO1</out_trade_no></xml>")
	require.NoError(t, c.Archive(context.Background(), "wechat", "PO1", payload))

	require.Len(t, putter.inputs, 1)
	in := putter.inputs[0]
	assert.Equal(t, "callbacks-bucket", aws.ToString(in.Bucket))
	assert.Regexp(t, `^callbacks/wechat/2026/11/PO1-[0-9a-f]{16}\.txt$`, aws.ToString(in.Key))
	assert.Equal(t, payload, putter.bodies[0])
	assert.Equal(t, int64(len(payload)), aws.ToInt64(in.ContentLength))
	assert.Equal(t, "PO1", in.Metadata["order-id"])
}

func TestArchiveSamePayloadSameKey(t *testing.T) {
	putter := &fakePutter{}
	c := NewClientWith(putter, "b", 0, nil)
	payload := []byte("notify_id=1&out_trade_no=PO2")

	require.NoError(t, c.Archive(context.Background(), "alipay", "PO2", payload))
	require.NoError(t, c.Archive(context.Background(), "alipay", "PO2", payload))
	require.Len(t, putter.inputs, 2)
	assert.Equal(t, aws.ToString(putter.inputs[0].Key), aws.ToString(putter.inputs[1].Key))
}

func TestArchivePropagatesError(t *testing.T) {
	c := NewClientWith(&fakePutter{err: errors.New("bucket gone")}, "b", 0, nil)
	err := c.Archive(context.Background(), "alipay", "PO3", []byte("x"))
	assert.ErrorContains(t, err, "bucket gone")
}

func TestLoadConfigRequiresCredentialsWhenEnabled(t *testing.T) {
	t.Setenv("ARCHIVE_ENABLED", "true")
	t.Setenv("S3_ACCESS_KEY_ID", "")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("S3_ACCESS_KEY_ID", "AKIA")
	t.Setenv("S3_SECRET_ACCESS_KEY", "secret")
	t.Setenv("S3_BUCKET_NAME", "callbacks")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "callbacks", cfg.BucketName)
}
