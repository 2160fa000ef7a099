package pipeline

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"medaug/internal/models"
	"medaug/pkg/augment"
)

// sliceTargets lays out the chain targets as image 0, mask 0, image 1,
// mask 1, ... so one evaluation carries every slice. Masks are omitted when
// the record has no label.
func sliceTargets(img, lbl *models.Volume) []augment.Target {
	per := 1
	if lbl != nil {
		per = 2
	}
	targets := make([]augment.Target, 0, per*img.Depth())
	for i, s := range img.Slices {
		targets = append(targets, augment.Target{Role: augment.RoleImage, Data: s})
		if lbl != nil {
			targets = append(targets, augment.Target{Role: augment.RoleMask, Data: lbl.Slices[i]})
		}
	}
	return targets
}

// restack rebuilds image and label volumes from targets laid out by
// sliceTargets, keeping the original slice order and layout.
func restack(targets []augment.Target, depth int, hasLabel, stacked bool) (*models.Volume, *models.Volume, error) {
	per := 1
	if hasLabel {
		per = 2
	}
	if len(targets) != per*depth {
		return nil, nil, fmt.Errorf("chain returned %d targets, want %d", len(targets), per*depth)
	}

	img := &models.Volume{Slices: make([]*mat.Dense, depth), Stacked: stacked}
	var lbl *models.Volume
	if hasLabel {
		lbl = &models.Volume{Slices: make([]*mat.Dense, depth), Stacked: stacked}
	}
	for i := 0; i < depth; i++ {
		img.Slices[i] = targets[i*per].Data
		if hasLabel {
			lbl.Slices[i] = targets[i*per+1].Data
		}
	}
	return img, lbl, nil
}

// synchronize evaluates the chain once over every slice of image and label so
// all slices share one realised random outcome.
func synchronize(rng *rand.Rand, chain *augment.Compose, in adapted) (adapted, []augment.Applied, error) {
	res, err := chain.Apply(rng, sliceTargets(in.image, in.label))
	if err != nil {
		return adapted{}, nil, err
	}
	img, lbl, err := restack(res.Targets, in.image.Depth(), in.label != nil, in.image.Stacked)
	if err != nil {
		return adapted{}, nil, err
	}
	return adapted{image: img, label: lbl}, res.Applied, nil
}

// applyPlanar evaluates the chain on a single-slice record.
func applyPlanar(rng *rand.Rand, chain *augment.Compose, in adapted) (adapted, []augment.Applied, error) {
	targets := []augment.Target{{Role: augment.RoleImage, Data: in.image.Slices[0]}}
	if in.label != nil {
		targets = append(targets, augment.Target{Role: augment.RoleMask, Data: in.label.Slices[0]})
	}
	res, err := chain.Apply(rng, targets)
	if err != nil {
		return adapted{}, nil, err
	}
	out := adapted{image: &models.Volume{Slices: []*mat.Dense{res.Targets[0].Data}, Stacked: in.image.Stacked}}
	if in.label != nil {
		out.label = &models.Volume{Slices: []*mat.Dense{res.Targets[1].Data}, Stacked: in.label.Stacked}
	}
	return out, res.Applied, nil
}
