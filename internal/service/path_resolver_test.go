package service

import (
	"testing"

	"github.com/mansoorceksport/imgcrop/internal/config"
	"github.com/mansoorceksport/imgcrop/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHost = "http://host"

func testStorageConfig() config.StorageConfig {
	return config.StorageConfig{
		WebRoot:         "/www",
		TempDir:         "files/temp",
		ContextsDir:     "files/contexts",
		OpaqueDir:       "wechat_api_file",
		MultiFilePolicy: config.MultiFileLast,
	}
}

func TestPathResolverRoots(t *testing.T) {
	r := NewPathResolver(testStorageConfig())

	assert.Equal(t, "/www", r.WebRoot())
	assert.Equal(t, "/www/files/temp", r.TempDir())
	assert.Equal(t, "/www/files/contexts", r.ContextsDir())
	assert.Equal(t, "/www/wechat_api_file", r.OpaqueDir())
	assert.Equal(t, "/www/files/contexts/default", r.ContextDir(""))
	assert.Equal(t, "/www/files/contexts/avatars", r.ContextDir("avatars"))
}

func TestURLToPath(t *testing.T) {
	r := NewPathResolver(testStorageConfig())

	tests := []struct {
		name    string
		url     string
		host    string
		want    string
		wantErr bool
	}{
		{name: "temp file", url: "http://host/files/temp/a.png", host: testHost, want: "/www/files/temp/a.png"},
		{name: "host with trailing slash", url: "http://host/files/temp/a.png", host: "http://host/", want: "/www/files/temp/a.png"},
		{name: "context file", url: "http://host/files/contexts/x/b.png", host: testHost, want: "/www/files/contexts/x/b.png"},
		{name: "foreign host", url: "http://evil/files/temp/a.png", host: testHost, wantErr: true},
		{name: "host prefix of longer host", url: "http://hostile/files/a.png", host: testHost, wantErr: true},
		{name: "bare host", url: "http://host", host: testHost, wantErr: true},
		{name: "root only", url: "http://host/", host: testHost, wantErr: true},
		{name: "dot dot escape", url: "http://host/files/../../etc/passwd", host: testHost, wantErr: true},
		{name: "empty host", url: "http://host/files/temp/a.png", host: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.URLToPath(tt.url, tt.host)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPathToURL(t *testing.T) {
	r := NewPathResolver(testStorageConfig())

	got, err := r.PathToURL("/www/files/contexts/default/a.png", testHost)
	require.NoError(t, err)
	assert.Equal(t, "http://host/files/contexts/default/a.png", got)

	_, err = r.PathToURL("/etc/passwd", testHost)
	assert.ErrorIs(t, err, domain.ErrInvalidPath)

	_, err = r.PathToURL("/wwwroot/a.png", testHost)
	assert.ErrorIs(t, err, domain.ErrInvalidPath)
}

func TestURLPathRoundTrip(t *testing.T) {
	r := NewPathResolver(testStorageConfig())

	urls := []string{
		"http://host/files/temp/01j9z.png",
		"http://host/files/contexts/default/01j9z.png",
		"http://host/files/contexts/team%20a/x.png",
		"http://host/wechat_api_file/cert.pem",
		"http://host/a",
	}
	for _, u := range urls {
		path, err := r.URLToPath(u, testHost)
		require.NoError(t, err, u)

		back, err := r.PathToURL(path, testHost)
		require.NoError(t, err, u)
		assert.Equal(t, u, back)
	}
}

func TestRelativeAndRoots(t *testing.T) {
	r := NewPathResolver(testStorageConfig())

	rel, err := r.Relative("/www/files/contexts/default/a.png")
	require.NoError(t, err)
	assert.Equal(t, "files/contexts/default/a.png", rel)

	assert.True(t, r.IsTemp("/www/files/temp/a.png"))
	assert.False(t, r.IsTemp("/www/files/temp"))
	assert.True(t, r.IsKnown("/www/files/contexts/default/a.png"))
	assert.False(t, r.IsKnown("/www/wechat_api_file/a.pem"))
	assert.False(t, r.IsKnown("/www/files/tempfoo/a.png"))
}

func TestValidateContext(t *testing.T) {
	for _, ok := range []string{"", "default", "avatars", "team-1"} {
		assert.NoError(t, ValidateContext(ok), ok)
	}
	for _, bad := range []string{".", "..", "a/b", `a\b`, "../x"} {
		assert.ErrorIs(t, ValidateContext(bad), domain.ErrValidation, bad)
	}
}
