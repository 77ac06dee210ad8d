package memsession

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockS3Client is a mock implementation of the S3Client interface
type MockS3Client struct {
	mock.Mock
}

func (m *MockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func (m *MockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.GetObjectOutput), args.Error(1)
}

func newMockS3Snapshotter(t *testing.T, client *MockS3Client) *S3Snapshotter {
	t.Helper()
	snap, err := NewS3Snapshotter(context.Background(), S3Config{
		Bucket: "sessions",
		Client: client,
	})
	require.NoError(t, err)
	return snap
}

func TestS3Snapshotter_Save(t *testing.T) {
	client := new(MockS3Client)
	snap := newMockS3Snapshotter(t, client)
	data := []byte("{}\n")

	var body []byte
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Bucket == "sessions" &&
			*in.Key == DefaultSnapshotName+".yaml" &&
			*in.ContentLength == int64(len(data))
	})).Run(func(args mock.Arguments) {
		body, _ = io.ReadAll(args.Get(1).(*s3.PutObjectInput).Body)
	}).Return(&s3.PutObjectOutput{}, nil).Once()

	require.NoError(t, snap.SaveSnapshot(context.Background(), data))
	assert.Equal(t, data, body)
	client.AssertExpectations(t)
}

func TestS3Snapshotter_SaveError(t *testing.T) {
	client := new(MockS3Client)
	snap := newMockS3Snapshotter(t, client)
	errPut := errors.New("access denied")

	client.On("PutObject", mock.Anything, mock.Anything).Return(nil, errPut).Once()

	err := snap.SaveSnapshot(context.Background(), []byte("{}\n"))
	assert.ErrorIs(t, err, errPut)
}

func TestS3Snapshotter_Restore(t *testing.T) {
	client := new(MockS3Client)
	snap := newMockS3Snapshotter(t, client)

	client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return *in.Bucket == "sessions" && *in.Key == DefaultSnapshotName+".yaml"
	})).Return(&s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader([]byte("a: 1\n"))),
	}, nil).Once()

	data, err := snap.RestoreSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a: 1\n", string(data))
	client.AssertExpectations(t)
}

func TestS3Snapshotter_RestoreMissing(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"typed NoSuchKey", &types.NoSuchKey{}},
		{"generic NotFound", &smithy.GenericAPIError{Code: "NotFound"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(MockS3Client)
			snap := newMockS3Snapshotter(t, client)
			client.On("GetObject", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			_, err := snap.RestoreSnapshot(context.Background())
			assert.ErrorIs(t, err, ErrNoSnapshot)
		})
	}
}

func TestS3Snapshotter_RestoreError(t *testing.T) {
	client := new(MockS3Client)
	snap := newMockS3Snapshotter(t, client)
	apiErr := &smithy.GenericAPIError{Code: "AccessDenied"}
	client.On("GetObject", mock.Anything, mock.Anything).Return(nil, apiErr).Once()

	_, err := snap.RestoreSnapshot(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSnapshot)
}

func TestS3Snapshotter_WithManager(t *testing.T) {
	client := new(MockS3Client)
	snap := newMockS3Snapshotter(t, client)

	var saved []byte
	client.On("PutObject", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		in := args.Get(1).(*s3.PutObjectInput)
		saved, _ = io.ReadAll(in.Body)
	}).Return(&s3.PutObjectOutput{}, nil)

	client.On("GetObject", mock.Anything, mock.Anything).Return(nil, &types.NoSuchKey{}).Once()

	mgr := newTestManager(t, Config{Snapshotter: snap})
	require.NoError(t, mgr.Restore(context.Background()))
	mgr.Store().Create("S3S3S3S3S3S3S3S3S3S3S3S3S3S3S3S3").Set("n", 1)
	require.NoError(t, mgr.Checkpoint(context.Background()))

	restored := NewStore()
	require.NoError(t, Unmarshal(restored, saved))
	sess, ok := restored.Get("S3S3S3S3S3S3S3S3S3S3S3S3S3S3S3S3")
	require.True(t, ok)
	n, _ := sess.GetInt("n")
	assert.Equal(t, 1, n)
}

func TestNewS3Snapshotter_RequiresBucket(t *testing.T) {
	_, err := NewS3Snapshotter(context.Background(), S3Config{Client: new(MockS3Client)})
	assert.Error(t, err)
}
