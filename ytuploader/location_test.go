package ytuploader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoogleStorageAddr(t *testing.T) {
	const (
		wantBkt = "uploader-secrets"
		wantObj = "youtube/client_secret.json"
		testURI = "gs://" + wantBkt + "/" + wantObj
	)

	bkt, obj, err := googleStorageAddr(testURI)
	require.NoError(t, err)
	assert.Equal(t, wantBkt, bkt)
	assert.Equal(t, wantObj, obj)

	for _, bad := range []string{"s3://bucket/obj", "gs://bucket", "gs:///obj", "/local/file.json"} {
		_, _, err := googleStorageAddr(bad)
		assert.Error(t, err, bad)
	}
}

func TestIsBucketLocation(t *testing.T) {
	assert.True(t, isBucketLocation("gs://b/o"))
	assert.False(t, isBucketLocation("client_secret.json"))
	assert.False(t, isBucketLocation("/etc/gs://odd"))
}

func TestLocalLocationReadWrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "token.json")

	_, err := readLocation(ctx, path)
	assert.ErrorIs(t, err, ErrLocationNotExist)

	require.NoError(t, writeLocation(ctx, path, []byte(`{"a":1}`), 0o600))
	got, err := readLocation(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
