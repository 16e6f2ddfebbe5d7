package dataset

import (
	"image"
	"image/color"
	"math/rand"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/transform"
)

// Augmenter applies stochastic input noise to samples. Noisy-student rounds
// feed noised unlabeled images to the student while the teacher predicts on
// the clean ones.
type Augmenter struct {
	rng *rand.Rand
}

// NewAugmenter creates an Augmenter with its own seeded RNG.
func NewAugmenter(seed int64) *Augmenter {
	return &Augmenter{rng: rand.New(rand.NewSource(seed))}
}

// Noise returns a noised copy of the image: a random horizontal flip, a
// translation of up to two pixels on each axis, a brightness jitter, and
// occasionally a light gaussian blur.
func (a *Augmenter) Noise(pixels []float64) []float64 {
	img := toRGBA(pixels)

	if a.rng.Intn(2) == 0 {
		img = transform.FlipH(img)
	}

	dx := a.rng.Intn(5) - 2
	dy := a.rng.Intn(5) - 2
	if dx != 0 || dy != 0 {
		img = transform.Translate(img, dx, dy)
	}

	if jitter := a.rng.Float64()*0.2 - 0.1; jitter != 0 {
		img = adjust.Brightness(img, jitter)
	}

	if a.rng.Float64() < 0.25 {
		img = blur.Gaussian(img, 0.8)
	}

	return fromRGBA(img)
}

// toRGBA converts planar [0,1] floats into an RGBA image.
func toRGBA(pixels []float64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, ImageSide, ImageSide))
	plane := ImageSide * ImageSide
	for y := 0; y < ImageSide; y++ {
		for x := 0; x < ImageSide; x++ {
			i := y*ImageSide + x
			img.SetRGBA(x, y, color.RGBA{
				R: clampByte(pixels[i]),
				G: clampByte(pixels[plane+i]),
				B: clampByte(pixels[2*plane+i]),
				A: 255,
			})
		}
	}
	return img
}

// fromRGBA converts an RGBA image back into planar [0,1] floats.
func fromRGBA(img *image.RGBA) []float64 {
	pixels := make([]float64, ImageSize)
	plane := ImageSide * ImageSide
	for y := 0; y < ImageSide; y++ {
		for x := 0; x < ImageSide; x++ {
			i := y*ImageSide + x
			c := img.RGBAAt(x, y)
			pixels[i] = float64(c.R) / 255
			pixels[plane+i] = float64(c.G) / 255
			pixels[2*plane+i] = float64(c.B) / 255
		}
	}
	return pixels
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
