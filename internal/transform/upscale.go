package transform

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/qrscan/internal/utils"
	"github.com/disintegration/imaging"
)

// ErrInvalidFactor is returned when an upscale factor is below 1.
var ErrInvalidFactor = utils.ErrInvalidFactor

// ValidateFactor reports ErrInvalidFactor for factors below 1.
func ValidateFactor(factor int) error {
	if factor < 1 {
		return fmt.Errorf("%w (got %d)", ErrInvalidFactor, factor)
	}
	return nil
}

// Upscale enlarges img by an integer factor using Catmull-Rom (cubic)
// resampling. A factor of 1 returns img unchanged.
func Upscale(img image.Image, factor int) (image.Image, error) {
	if err := ValidateFactor(factor); err != nil {
		return nil, &utils.ImageProcessingError{Operation: "upscale", Err: err}
	}
	if img == nil {
		return nil, &utils.ImageProcessingError{Operation: "upscale", Err: errors.New("input image is nil")}
	}
	if factor == 1 {
		return img, nil
	}
	b := img.Bounds()
	return imaging.Resize(img, b.Dx()*factor, b.Dy()*factor, imaging.CatmullRom), nil
}
