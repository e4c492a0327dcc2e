package storage

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockObjectAPI struct {
	mock.Mock
}

func (m *MockObjectAPI) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func (m *MockObjectAPI) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.GetObjectOutput), args.Error(1)
}

func (m *MockObjectAPI) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.DeleteObjectOutput), args.Error(1)
}

type MockPresignAPI struct {
	mock.Mock
}

func (m *MockPresignAPI) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*v4.PresignedHTTPRequest), args.Error(1)
}

func TestS3Client_Upload(t *testing.T) {
	objects := new(MockObjectAPI)
	objects.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Bucket == "certs" && *in.Key == "2026/CERT-P1-2026.pdf" && *in.ContentType == "application/pdf"
	})).Return(&s3.PutObjectOutput{}, nil)

	client := NewS3ClientFromAPI(objects, new(MockPresignAPI))
	err := client.Upload(context.Background(), "certs", "2026/CERT-P1-2026.pdf", "application/pdf", bytes.NewReader([]byte("%PDF")))
	require.NoError(t, err)
	objects.AssertExpectations(t)
}

func TestS3Client_Upload_Errors(t *testing.T) {
	objects := new(MockObjectAPI)
	objects.On("PutObject", mock.Anything, mock.Anything).Return(nil, assert.AnError)
	client := NewS3ClientFromAPI(objects, new(MockPresignAPI))

	err := client.Upload(context.Background(), "certs", "k", "", bytes.NewReader(nil))
	assert.ErrorIs(t, err, assert.AnError)

	err = client.Upload(context.Background(), "", "k", "", bytes.NewReader(nil))
	assert.Error(t, err)
}

func TestS3Client_DownloadAndDelete(t *testing.T) {
	objects := new(MockObjectAPI)
	objects.On("GetObject", mock.Anything, mock.Anything).
		Return(&s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte("data")))}, nil)
	objects.On("DeleteObject", mock.Anything, mock.Anything).Return(&s3.DeleteObjectOutput{}, nil)

	client := NewS3ClientFromAPI(objects, new(MockPresignAPI))

	body, err := client.Download(context.Background(), "certs", "k")
	require.NoError(t, err)
	data, _ := io.ReadAll(body)
	assert.Equal(t, "data", string(data))

	require.NoError(t, client.Delete(context.Background(), "certs", "k"))
	objects.AssertExpectations(t)
}

func TestS3Client_GetPresignedURL(t *testing.T) {
	presign := new(MockPresignAPI)
	presign.On("PresignGetObject", mock.Anything, mock.Anything).
		Return(&v4.PresignedHTTPRequest{URL: "https://certs.example/k?X-Amz-Signature=abc"}, nil)

	client := NewS3ClientFromAPI(new(MockObjectAPI), presign)
	url, err := client.GetPresignedURL(context.Background(), "certs", "k", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, "X-Amz-Signature")
}
