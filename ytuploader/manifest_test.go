package ytuploader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "content.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestReadManifest(t *testing.T) {
	path := writeManifest(t, `video_path,title,description
videos/a.mp4,First,"Line one, with comma"
videos/b.mp4,Second,"Multi
line"
`)
	got, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, []ManifestEntry{
		{VideoPath: "videos/a.mp4", Title: "First", Description: "Line one, with comma"},
		{VideoPath: "videos/b.mp4", Title: "Second", Description: "Multi\nline"},
	}, got)
}

func TestParseManifestColumnOrderAndExtras(t *testing.T) {
	body := "\ufeffTitle , extra, description,video_path\n" +
		" A ,x, about a ,  a.mp4 \n" +
		"B,y,,b.mp4\n" +
		"C,z\n" +
		"D,w,d,\n"
	got, err := parseManifest(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, []ManifestEntry{
		{VideoPath: "a.mp4", Title: "A", Description: "about a"},
		{VideoPath: "b.mp4", Title: "B"},
	}, got)
}

func TestParseManifestHeaderOnly(t *testing.T) {
	got, err := parseManifest(strings.NewReader("video_path,title,description\n"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseManifestErrors(t *testing.T) {
	for name, body := range map[string]string{
		"empty":          "",
		"missing column": "video_path,title\na.mp4,A\n",
		"bad quoting":    "video_path,title,description\n\"a.mp4,A,B\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseManifest(strings.NewReader(body))
			assert.Error(t, err)
		})
	}
}

func TestReadManifestMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.csv")
	_, err := ReadManifest(path)

	var mre *ManifestReadError
	require.ErrorAs(t, err, &mre)
	assert.Equal(t, path, mre.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
