package pipeline

import (
	"fmt"

	"medaug/internal/models"
	"medaug/pkg/augment"
)

// cropWindow expands the bounding box by the configured tolerance. The
// window is not clamped here; the crop operator clamps it to the image.
func (m *MedicalTransform) cropWindow(roi *models.BoundingBox) (models.BoundingBox, error) {
	if roi == nil {
		return models.BoundingBox{}, fmt.Errorf("%w: ROI cropping is enabled but the record has no bounding box", ErrMissingROI)
	}
	if !roi.Valid() {
		return models.BoundingBox{}, fmt.Errorf("%w: bounding box %+v has min > max", ErrMalformedRecord, *roi)
	}
	return roi.Expand(m.opts.ROIErrorRange), nil
}

// roiCrop returns the always-applied crop that leads the chain.
func (m *MedicalTransform) roiCrop(roi *models.BoundingBox) (*augment.Crop, error) {
	w, err := m.cropWindow(roi)
	if err != nil {
		return nil, err
	}
	return &augment.Crop{XMin: w.MinX, YMin: w.MinY, XMax: w.MaxX, YMax: w.MaxY, P: 1}, nil
}
