package media

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

func TestSave_SanitizesAndStores(t *testing.T) {
	s := NewStore(t.TempDir())
	url, err := s.Save(Image{Filename: "../Front View!.PNG", Size: 3, Body: strings.NewReader("png")})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "/media/products/"))
	require.True(t, strings.HasSuffix(url, "_Front_View_.png"))

	data, err := os.ReadFile(filepath.Join(s.Dir, "products", filepath.Base(url)))
	require.NoError(t, err)
	require.Equal(t, "png", string(data))
}

func TestSave_Rejects(t *testing.T) {
	s := NewStore(t.TempDir())

	_, err := s.Save(Image{Filename: "shell.php", Size: 3, Body: strings.NewReader("php")})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = s.Save(Image{Filename: "big.jpg", Size: MaxBytes + 1, Body: strings.NewReader("x")})
	require.ErrorIs(t, err, domain.ErrValidation)

	// a lying size header is caught while copying
	body := bytes.NewReader(make([]byte, MaxBytes+10))
	_, err = s.Save(Image{Filename: "big.jpg", Size: 10, Body: body})
	require.ErrorIs(t, err, domain.ErrValidation)
	entries, _ := os.ReadDir(filepath.Join(s.Dir, "products"))
	require.Empty(t, entries)
}

func TestDelete(t *testing.T) {
	s := NewStore(t.TempDir())
	url, err := s.Save(Image{Filename: "a.jpg", Size: 1, Body: strings.NewReader("a")})
	require.NoError(t, err)

	require.NoError(t, s.Delete(url))
	require.NoFileExists(t, filepath.Join(s.Dir, "products", filepath.Base(url)))
	require.NoError(t, s.Delete(url))
	require.NoError(t, s.Delete(Placeholder))
	require.NoError(t, s.Delete("https://cdn.example.com/a.jpg"))
}

func TestDelete_KeepsPlaceholder(t *testing.T) {
	s := NewStore(t.TempDir())
	dir := filepath.Join(s.Dir, "products")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	placeholder := filepath.Join(dir, filepath.Base(Placeholder))
	require.NoError(t, os.WriteFile(placeholder, []byte("jpg"), 0o644))

	for _, url := range []string{
		Placeholder,
		"/media/products/./no-image.jpg",
		"/media/products/no-image.jpg/",
		"/media/products//no-image.jpg",
		"/media/products/x/../no-image.jpg",
	} {
		require.NoError(t, s.Delete(url), url)
		require.FileExists(t, placeholder, url)
	}
}

func TestValidURL(t *testing.T) {
	s := NewStore(t.TempDir())
	url, err := s.Save(Image{Filename: "front.jpg", Size: 1, Body: strings.NewReader("a")})
	require.NoError(t, err)

	require.True(t, ValidURL(url))
	require.True(t, ValidURL(Placeholder))
	for _, bad := range []string{
		"",
		"/media/products/./no-image.jpg",
		"/media/products/no-image.jpg/",
		"/media/products/a.jpg",
		"/media/products/../secret.jpg",
		url + "/",
		"https://cdn.example.com/a.jpg",
		strings.TrimSuffix(url, ".jpg") + ".php",
	} {
		require.False(t, ValidURL(bad), bad)
	}
}

func TestResolve(t *testing.T) {
	s := NewStore("/srv/media")

	p, ok := s.Resolve("products/a.jpg")
	require.True(t, ok)
	require.Equal(t, filepath.Join("/srv/media", "products", "a.jpg"), p)

	for _, bad := range []string{"../etc/passwd", "products/%2e%2e/x", "/etc/passwd", "", "a\x00b"} {
		_, ok := s.Resolve(bad)
		require.False(t, ok, bad)
	}
}
