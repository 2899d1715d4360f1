// Package codec is the built-in decode/resize/encode path: the fallback
// strategy that is always present for raster formats the process can
// re-encode on its own, with no external tools installed.
package codec

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register WebP decoding

	"squish/pkg/imgutil"
)

// Decode opens and fully decodes an image file. A failure here means the
// file is not a readable image of its detected format.
func Decode(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Dimensions reads just the image header and returns width and height.
func Dimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("read header of %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Resize scales img down so its longer edge equals maxDim, preserving aspect
// ratio with Lanczos resampling. Images already within the bound, and any
// call with maxDim <= 0, return img untouched. Upscaling never happens.
func Resize(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	longer := w
	if h > longer {
		longer = h
	}
	if maxDim <= 0 || longer <= maxDim {
		return img
	}

	scale := float64(maxDim) / float64(longer)
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return imaging.Resize(img, nw, nh, imaging.Lanczos)
}

// Encode writes img to w in the given format. JPEG output is flattened onto
// a white background first since the format has no alpha channel.
func Encode(w io.Writer, img image.Image, format imgutil.Format, quality int) error {
	switch format {
	case imgutil.FormatJPEG:
		return imaging.Encode(w, flatten(img), imaging.JPEG, imaging.JPEGQuality(quality))
	case imgutil.FormatPNG:
		return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	case imgutil.FormatGIF:
		return imaging.Encode(w, img, imaging.GIF)
	default:
		return fmt.Errorf("no built-in encoder for %s", format)
	}
}

// EncodeToFile encodes img into the file at path, truncating it first.
func EncodeToFile(path string, img image.Image, format imgutil.Format, quality int) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := Encode(f, img, format, quality); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func flatten(img image.Image) image.Image {
	bounds := img.Bounds()
	bg := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}
