package blob

import (
	"errors"
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Bucket: "templates"})
	assert.Error(t, err)

	_, err = New(Config{Endpoint: "localhost:9000"})
	assert.Error(t, err)

	s, err := New(Config{Endpoint: "localhost:9000", Bucket: "templates", AccessKey: "minio", SecretKey: "minio123"})
	require.NoError(t, err)
	assert.Equal(t, "templates", s.bucket)
}

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"missing key", minio.ErrorResponse{Code: "NoSuchKey", Message: "gone"}, ErrNotFound},
		{"missing bucket", minio.ErrorResponse{Code: "NoSuchBucket"}, ErrNotFound},
		{"status 404", minio.ErrorResponse{StatusCode: http.StatusNotFound}, ErrNotFound},
		{"denied", minio.ErrorResponse{Code: "AccessDenied"}, ErrAccessDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, translateError(tt.err), tt.want)
		})
	}

	other := errors.New("dial tcp: connection refused")
	assert.Equal(t, other, translateError(other))
}
