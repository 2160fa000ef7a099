package pipeline

import (
	"medaug/internal/models"
	"medaug/pkg/augment"
)

// Train recipe constants
const (
	flipProbability        = 0.5
	photometricProbability = 0.5
	distortionProbability  = 0.5
	affineProbability      = 0.5
	affineShiftLimit       = 0.2
	affineScaleLimit       = 0.5
	affineRotateLimit      = 30
)

// buildChain assembles the operator chain for one invocation.
//
// Train: flip, brightness/contrast, gamma, grid distortion, resize, pad,
// shift/scale/rotate. Eval: resize, pad. With UseROI a crop leads either
// recipe. The affine step comes after the pad so it perturbs the padded
// canvas.
func (m *MedicalTransform) buildChain(roi *models.BoundingBox) (*augment.Compose, error) {
	var ops []augment.Operator

	if m.opts.UseROI {
		crop, err := m.roiCrop(roi)
		if err != nil {
			return nil, err
		}
		ops = append(ops, crop)
	}

	switch m.opts.Mode {
	case ModeTrain:
		ops = append(ops,
			&augment.HorizontalFlip{P: flipProbability},
			augment.NewRandomBrightnessContrast(photometricProbability),
			augment.NewRandomGamma(photometricProbability),
			augment.NewGridDistortion(distortionProbability),
		)
		ops = append(ops, m.normalizer()...)
		ops = append(ops, augment.NewShiftScaleRotate(affineProbability, affineShiftLimit, affineScaleLimit, affineRotateLimit))
	default:
		ops = append(ops, m.normalizer()...)
	}

	return augment.NewCompose(ops...), nil
}
