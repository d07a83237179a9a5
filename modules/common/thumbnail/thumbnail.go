// Package thumbnail renders small PNG previews of on-disk reference images and
// memoizes them per (path, width).
package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io/fs"
	"os"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"

	"skagen-studio-server/modules/common/utils"
)

// ErrNotFound is returned when the source file does not exist.
var ErrNotFound = errors.New("thumbnail source not found")

const cleanupInterval = 10 * time.Minute

// Cache memoizes base64 PNG previews. It is safe for concurrent use.
type Cache struct {
	items *cache.Cache
}

// NewCache creates a thumbnail cache. A ttl of zero keeps entries for the
// lifetime of the process.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		return &Cache{items: cache.New(cache.NoExpiration, 0)}
	}
	return &Cache{items: cache.New(ttl, cleanupInterval)}
}

// Get returns the base64-encoded PNG preview of path scaled to maxWidth.
func (c *Cache) Get(path string, maxWidth int) (string, error) {
	if maxWidth <= 0 {
		return "", fmt.Errorf("thumbnail width must be positive, got %d", maxWidth)
	}

	key := fmt.Sprintf("%s|%d", path, maxWidth)
	if v, ok := c.items.Get(key); ok {
		return v.(string), nil
	}

	encoded, err := render(path, maxWidth)
	if err != nil {
		return "", err
	}
	c.items.Set(key, encoded, cache.DefaultExpiration)

	log.Debug().Str("path", path).Int("width", maxWidth).Msg("🖼️  Thumbnail cached")
	return encoded, nil
}

// Len reports the number of cached previews.
func (c *Cache) Len() int {
	return c.items.ItemCount()
}

// render scales the image at path to exactly maxWidth pixels wide.
func render(path string, maxWidth int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", utils.ErrDecode, path, err)
	}

	b := src.Bounds()
	h := max(1, int(float64(b.Dy())*float64(maxWidth)/float64(b.Dx())))
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return utils.ConvertImageToBase64(buf.Bytes()), nil
}

// DataURL renders an encoded preview for inline display.
func DataURL(encoded string) string {
	return utils.EncodeDataURL(encoded, "image/png")
}
