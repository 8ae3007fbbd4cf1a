// Package codec re-encodes raw screenshots into lossy images that fit a
// configured byte budget while keeping banner text legible.
package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/banner-tools/bannershot/config"
	"github.com/banner-tools/bannershot/models"
	"github.com/disintegration/imaging"
)

// Linear downscale schedule applied once the emergency quality band is
// exhausted.
const (
	emergencyScaleStart = 0.90
	emergencyScaleStep  = 0.05
)

// Result reports how an image was fitted under the byte budget.
type Result struct {
	Data    []byte
	Quality int
	Width   int
	Height  int

	// Scale is the linear downscale factor applied, 1.0 when none.
	Scale float64

	// SizeKB is len(Data)/1024 as a float.
	SizeKB float64

	// OverBudget is set when even the minimum quality at the minimum
	// scale could not meet the budget. Data then holds the smallest
	// encoding produced; degraded output beats no output.
	OverBudget bool
}

// EncodeUnderBudget compresses img to a JPEG at or under the configured
// byte budget.
//
// The search runs in three phases: a quality descent from the maximum to
// the normal floor, an emergency band below the floor, and finally a
// Lanczos downscale loop at the emergency ceiling quality. The first
// encoding at or under budget wins. Alpha is composited onto white first
// since JPEG has no transparency.
func EncodeUnderBudget(img image.Image, cfg config.CodecConfig) (*Result, error) {
	budget := cfg.MaxSizeKB * 1024
	flat := flattenToRGB(img)
	bounds := flat.Bounds()

	var smallest *Result

	try := func(m image.Image, quality int, scale float64) (*Result, error) {
		data, err := encodeJPEG(m, quality)
		if err != nil {
			return nil, err
		}
		r := &Result{
			Data:    data,
			Quality: quality,
			Width:   m.Bounds().Dx(),
			Height:  m.Bounds().Dy(),
			Scale:   scale,
			SizeKB:  float64(len(data)) / 1024,
		}
		if smallest == nil || len(data) < len(smallest.Data) {
			smallest = r
		}
		if len(data) <= budget {
			return r, nil
		}
		return nil, nil
	}

	for q := cfg.MaxQuality; q >= cfg.MinQuality; q -= 5 {
		r, err := try(flat, q, 1.0)
		if err != nil {
			return nil, encodeError(err)
		}
		if r != nil {
			return r, nil
		}
	}

	for q := cfg.EmergencyMaxQuality; q >= cfg.EmergencyMinQuality; q -= 5 {
		r, err := try(flat, q, 1.0)
		if err != nil {
			return nil, encodeError(err)
		}
		if r != nil {
			return r, nil
		}
	}

	for scale := emergencyScaleStart; scale >= cfg.MinScale-1e-9; scale -= emergencyScaleStep {
		w := int(float64(bounds.Dx()) * scale)
		h := int(float64(bounds.Dy()) * scale)
		if w < 1 || h < 1 {
			break
		}
		scaled := imaging.Resize(flat, w, h, imaging.Lanczos)
		r, err := try(scaled, cfg.EmergencyMaxQuality, scale)
		if err != nil {
			return nil, encodeError(err)
		}
		if r != nil {
			return r, nil
		}
	}

	if smallest == nil {
		return nil, encodeError(fmt.Errorf("no encoding produced"))
	}
	smallest.OverBudget = true
	return smallest, nil
}

// Normalize2x undoes an exact 2x device-pixel-ratio capture. When the
// image is precisely twice the logical target in both axes it is
// downsampled back to logical pixels before encoding; any other ratio is
// returned untouched.
func Normalize2x(img image.Image, logicalWidth, logicalHeight int) image.Image {
	b := img.Bounds()
	if logicalWidth > 0 && logicalHeight > 0 &&
		b.Dx() == logicalWidth*2 && b.Dy() == logicalHeight*2 {
		return imaging.Resize(img, logicalWidth, logicalHeight, imaging.Lanczos)
	}
	return img
}

// flattenToRGB composites img onto an opaque white canvas, discarding
// alpha. A no-op in effect for fully opaque inputs.
func flattenToRGB(img image.Image) *image.NRGBA {
	b := img.Bounds()
	canvas := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeError(err error) error {
	return models.NewCaptureError(models.ErrCodeEncoding, "image encoding failed", err)
}
