// Package photo converts an uploaded image into its canonical storage
// form: auto-rotated, metadata-free JPEG with a bounded longest edge.
package photo

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"

	// register the WebP decoder with the image package
	_ "golang.org/x/image/webp"

	"github.com/cleanmap/reports-service/internal/types"
)

// ErrInvalidImage marks an upload that could not be decoded as an
// image. Content type and size are validated before this point, so an
// undecodable stream means a corrupt or mislabeled file.
var ErrInvalidImage = errors.New("invalid or corrupt image")

const (
	DefaultMaxEdge = 1920
	DefaultQuality = 85

	// OutputContentType is the media type every normalized photo is
	// re-encoded to.
	OutputContentType = "image/jpeg"
)

// Normalize decodes an image stream, applies the EXIF orientation,
// flattens it onto an opaque white canvas, downscales so the longer
// edge fits maxEdge (never upscaling), and re-encodes as JPEG at the
// given quality. Re-encoding also strips all metadata.
func Normalize(r io.ReadSeeker, maxEdge, quality int) (*types.NormalizedPhoto, error) {
	if maxEdge <= 0 {
		maxEdge = DefaultMaxEdge
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload stream: %w", err)
	}

	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxEdge || bounds.Dy() > maxEdge {
		img = imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)
	}

	// drop alpha and palette by compositing onto white
	flat := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), color.White)
	flat = imaging.Overlay(flat, img, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return &types.NormalizedPhoto{
		Data:        buf.Bytes(),
		ContentType: OutputContentType,
		Width:       flat.Bounds().Dx(),
		Height:      flat.Bounds().Dy(),
	}, nil
}
