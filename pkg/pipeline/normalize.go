package pipeline

import "medaug/pkg/augment"

// normalizer returns the two always-applied steps that bring any canvas to
// the output size: longest side to max(OutputSize), then pad to OutputSize.
func (m *MedicalTransform) normalizer() []augment.Operator {
	size := m.opts.OutputSize
	return []augment.Operator{
		&augment.LongestMaxSize{MaxSize: size.Max(), P: 1},
		&augment.PadToSize{Height: size.Height, Width: size.Width, Value: 0, P: 1},
	}
}
