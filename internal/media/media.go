package media

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"storefront/internal/domain"
)

const (
	// Placeholder is shown for products without an image and is never deleted.
	Placeholder = "/media/products/no-image.jpg"
	MaxBytes    = 2 << 20

	urlPrefix = "/media/products/"
)

var (
	allowedExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}
	reUnsafe   = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	reStored   = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}_[A-Za-z0-9._-]{0,60}\.(jpg|jpeg|png|gif|webp)$`)
)

// ValidURL reports whether url is the placeholder or a name Save could have produced.
func ValidURL(url string) bool {
	if url == Placeholder {
		return true
	}
	name, ok := strings.CutPrefix(url, urlPrefix)
	return ok && name == filepath.Base(name) && reStored.MatchString(name)
}

// Image is an uploaded file as the services see it.
type Image struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// Store keeps product images on local disk under Dir/products.
type Store struct {
	Dir string
}

func NewStore(dir string) *Store { return &Store{Dir: dir} }

// Save writes img and returns its public URL.
func (s *Store) Save(img Image) (string, error) {
	ext := strings.ToLower(filepath.Ext(img.Filename))
	if !allowedExt[ext] {
		return "", domain.Invalid("image", "only jpg, jpeg, png, gif and webp images are allowed")
	}
	if img.Size > MaxBytes {
		return "", domain.Invalid("image", "image must be 2 MB or smaller")
	}
	base := reUnsafe.ReplaceAllString(strings.TrimSuffix(filepath.Base(img.Filename), filepath.Ext(img.Filename)), "_")
	if len(base) > 60 {
		base = base[:60]
	}
	name := uuid.NewString() + "_" + base + ext

	dir := filepath.Join(s.Dir, "products")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	full := filepath.Join(dir, name)
	f, err := os.Create(full)
	if err != nil {
		return "", err
	}
	n, err := io.Copy(f, io.LimitReader(img.Body, MaxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > MaxBytes {
		err = domain.Invalid("image", "image must be 2 MB or smaller")
	}
	if err != nil {
		_ = os.Remove(full)
		return "", err
	}
	return urlPrefix + name, nil
}

// Delete removes a stored image by URL. The placeholder, foreign or
// non-canonical URLs and already-missing files are ignored.
func (s *Store) Delete(url string) error {
	if url == Placeholder || !ValidURL(url) {
		return nil
	}
	name := filepath.Base(url)
	if name == filepath.Base(Placeholder) {
		return nil
	}
	err := os.Remove(filepath.Join(s.Dir, "products", name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("media: delete %s: %w", name, err)
	}
	return nil
}

// Resolve maps a path below /media/ to a file inside Dir, refusing traversal.
func (s *Store) Resolve(rel string) (string, bool) {
	lower := strings.ToLower(rel)
	if strings.Contains(lower, "..") || strings.Contains(lower, "%2e") || strings.Contains(lower, "\x00") {
		return "", false
	}
	clean := filepath.Clean(rel)
	if clean == "." || strings.Contains(clean, "..") || filepath.IsAbs(clean) {
		return "", false
	}
	return filepath.Join(s.Dir, clean), true
}
