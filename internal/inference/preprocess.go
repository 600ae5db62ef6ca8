package inference

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
)

// Preprocessor converts decoded frames into the model's input tensor layout.
type Preprocessor struct {
	Size int
	Mean [3]float32
	Std  [3]float32
}

// NewPreprocessor builds a preprocessor from per-channel mean and std values.
func NewPreprocessor(size int, mean, std []float64) (Preprocessor, error) {
	if size <= 0 {
		return Preprocessor{}, fmt.Errorf("image size must be positive, got %d", size)
	}
	if len(mean) != 3 || len(std) != 3 {
		return Preprocessor{}, fmt.Errorf("mean and std need 3 channel values, got %d and %d", len(mean), len(std))
	}
	p := Preprocessor{Size: size}
	for c := range 3 {
		if std[c] <= 0 {
			return Preprocessor{}, fmt.Errorf("std[%d] must be positive", c)
		}
		p.Mean[c] = float32(mean[c])
		p.Std[c] = float32(std[c])
	}
	return p, nil
}

// Decode parses JPEG or PNG bytes.
func Decode(data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("decode frame: empty %s image", format)
	}
	return img, nil
}

// Shape returns the NCHW shape of a single preprocessed frame.
func (p Preprocessor) Shape() []int64 {
	return []int64{1, 3, int64(p.Size), int64(p.Size)}
}

// Tensor resizes img to Size×Size with bilinear interpolation and returns
// channel-major values normalized as (x/255 - mean) / std.
func (p Preprocessor) Tensor(img image.Image) []float32 {
	size := p.Size
	resized := resize.Resize(uint(size), uint(size), img, resize.Bilinear)
	bounds := resized.Bounds()

	plane := size * size
	out := make([]float32, 3*plane)
	for y := range size {
		for x := range size {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := y*size + x
			out[i] = (float32(r>>8)/255 - p.Mean[0]) / p.Std[0]
			out[plane+i] = (float32(g>>8)/255 - p.Mean[1]) / p.Std[1]
			out[2*plane+i] = (float32(b>>8)/255 - p.Mean[2]) / p.Std[2]
		}
	}
	return out
}
