package eval

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
)

const (
	DefaultCropPct = 0.875
	USICropPct     = 0.95
)

var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

// Transform resizes, center-crops and normalizes an image into a CHW
// float32 plane.
type Transform struct {
	Resolution int
	CropPct    float64
	Mean       [3]float32
	Std        [3]float32
}

// NewTransform returns the evaluation transform for a model input size.
// USI checkpoints are evaluated with a wider crop and no normalization.
func NewTransform(resolution int, usi bool) Transform {
	if usi {
		return Transform{
			Resolution: resolution,
			CropPct:    USICropPct,
			Std:        [3]float32{1, 1, 1},
		}
	}

	return Transform{
		Resolution: resolution,
		CropPct:    DefaultCropPct,
		Mean:       imagenetMean,
		Std:        imagenetStd,
	}
}

// ScaleSize is the length the shorter image side is resized to before
// cropping.
func (t Transform) ScaleSize() int {
	return int(math.Floor(float64(t.Resolution) / t.CropPct))
}

// Apply writes 3*R*R values for img into dst in channel-major order.
func (t Transform) Apply(img image.Image, dst []float32) error {
	r := t.Resolution
	if len(dst) != 3*r*r {
		return fmt.Errorf("transform: destination holds %d values, want %d", len(dst), 3*r*r)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if w == 0 || h == 0 {
		return fmt.Errorf("transform: empty image")
	}

	size := t.ScaleSize()
	if size < r {
		size = r
	}

	nw, nh := size, size
	if w < h {
		nh = int(float64(size) * float64(h) / float64(w))
	} else {
		nw = int(float64(size) * float64(w) / float64(h))
	}

	resized := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, b, draw.Src, nil)

	left := int(math.Round(float64(nw-r) / 2))
	top := int(math.Round(float64(nh-r) / 2))

	plane := r * r

	for y := range r {
		for x := range r {
			off := resized.PixOffset(left+x, top+y)
			px := resized.Pix[off : off+3 : off+3]
			i := y*r + x

			for c := range 3 {
				v := float32(px[c]) / 255
				dst[c*plane+i] = (v - t.Mean[c]) / t.Std[c]
			}
		}
	}

	return nil
}
