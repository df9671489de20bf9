// Package thumbs generates JPEG thumbnails for image uploads.
package thumbs

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

const (
	MaxSize = 400
	Quality = 80
)

// Key returns the thumbnail storage key for a content handle.
func Key(contentHandle string) string {
	return "_thumbs/" + strings.TrimPrefix(contentHandle, "/")
}

// IsImage reports whether a file looks like a renderable image, by MIME
// type first and extension as fallback.
func IsImage(mimeType, name string) bool {
	if strings.HasPrefix(mimeType, "image/") {
		return true
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp":
		return true
	}
	return false
}

// Generate decodes an image, corrects EXIF orientation, fits it within
// MaxSize x MaxSize preserving aspect ratio, and returns JPEG bytes
// with the thumbnail dimensions.
func Generate(data []byte) ([]byte, int, int, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, err
	}

	img = applyOrientation(img, orientation(data))

	thumb := imaging.Fit(img, MaxSize, MaxSize, imaging.Lanczos)
	bounds := thumb.Bounds()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: Quality}); err != nil {
		return nil, 0, 0, err
	}
	return buf.Bytes(), bounds.Dx(), bounds.Dy(), nil
}

// orientation reads the EXIF orientation tag, defaulting to 1 (normal)
// when no EXIF data is present.
func orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

// applyOrientation transforms an image according to EXIF orientation value.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
