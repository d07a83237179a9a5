package utils

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // GIF 디코더 등록
	_ "image/jpeg" // JPEG 디코더 등록
	_ "image/png"  // PNG 디코더 등록
	"math"
	"net/http"

	"github.com/gen2brain/jpegli"
	_ "github.com/kolesa-team/go-webp/decoder" // WebP 디코더 등록
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

// ErrDecode is returned when input bytes are not a decodable raster image.
var ErrDecode = errors.New("invalid image")

// squareCropRatio is the width:height ratio square inputs are cropped to.
const squareCropRatio = 3.0 / 2.0

// NormalizeOptions controls NormalizeImage.
type NormalizeOptions struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}

// DefaultNormalizeOptions - 3000x3000, quality 95
func DefaultNormalizeOptions() NormalizeOptions {
	return NormalizeOptions{MaxWidth: 3000, MaxHeight: 3000, Quality: 95}
}

// NormalizeImage decodes data, crops square inputs to 3:2, downscales to fit
// within the configured bounds and re-encodes as JPEG with 4:4:4 chroma.
func NormalizeImage(data []byte, opts NormalizeOptions) ([]byte, error) {
	defaults := DefaultNormalizeOptions()
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = defaults.MaxWidth
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = defaults.MaxHeight
	}
	if opts.Quality <= 0 {
		opts.Quality = defaults.Quality
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	srcRect := src.Bounds()
	if srcRect.Dx() == 0 || srcRect.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}
	if srcRect.Dx() == srcRect.Dy() {
		srcRect = cropSquareToLandscape(srcRect)
	}

	w, h := FitWithin(srcRect.Dx(), srcRect.Dy(), opts.MaxWidth, opts.MaxHeight)

	// RGB로 평탄화 (투명 영역은 흰색)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	if w == srcRect.Dx() && h == srcRect.Dy() {
		draw.Draw(dst, dst.Bounds(), src, srcRect.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, srcRect, draw.Over, nil)
	}

	var buf bytes.Buffer
	err = jpegli.Encode(&buf, dst, &jpegli.EncodingOptions{
		Quality:           opts.Quality,
		ChromaSubsampling: image.YCbCrSubsampleRatio444,
		OptimizeCoding:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}

	log.Debug().
		Str("format", format).
		Int("src_width", src.Bounds().Dx()).
		Int("src_height", src.Bounds().Dy()).
		Int("width", w).
		Int("height", h).
		Int("bytes_in", len(data)).
		Int("bytes_out", buf.Len()).
		Msg("🔄 Image normalized")

	return buf.Bytes(), nil
}

// cropSquareToLandscape removes equal top and bottom bands so that the
// remaining rectangle is 3:2.
func cropSquareToLandscape(r image.Rectangle) image.Rectangle {
	w, h := r.Dx(), r.Dy()
	newH := max(1, int(float64(w)/squareCropRatio))
	top := (h - newH) / 2
	return image.Rect(r.Min.X, r.Min.Y+top, r.Max.X, r.Min.Y+top+newH)
}

// FitWithin returns the size of a w×h image scaled down, aspect preserved, so
// that it fits maxW×maxH. Images already inside the bounds are returned as is.
func FitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	nw = max(1, min(nw, maxW))
	nh = max(1, min(nh, maxH))
	return nw, nh
}

// DetectMimeType sniffs the content type of raw image bytes.
func DetectMimeType(data []byte) string {
	return http.DetectContentType(data)
}

// EncodeDataURL creates a data: URI from base64 content and a MIME type.
func EncodeDataURL(b64, mimeType string) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, b64)
}

// ConvertImageToBase64 - 이미지 바이너리를 base64로 변환
func ConvertImageToBase64(imageData []byte) string {
	return base64.StdEncoding.EncodeToString(imageData)
}
