package augment

import (
	"fmt"
	"math/rand/v2"
)

// Applied records one operator that fired and the parameters it used.
type Applied struct {
	Operator string
	Params   Params
}

// Result is the output of one chain evaluation.
type Result struct {
	// Targets are the transformed arrays, in input order
	Targets []Target

	// Applied lists the operators that fired, in chain order
	Applied []Applied
}

// Compose is an ordered operator chain.
type Compose struct {
	ops []Operator
}

// NewCompose creates a chain that runs ops in order.
func NewCompose(ops ...Operator) *Compose {
	return &Compose{ops: ops}
}

// Operators returns the chain's operators in order.
func (c *Compose) Operators() []Operator {
	out := make([]Operator, len(c.ops))
	copy(out, c.ops)
	return out
}

// Len returns the number of operators in the chain.
func (c *Compose) Len() int {
	return len(c.ops)
}

// Apply evaluates the chain once over all targets.
//
// Every activation decision and every parameter draw is taken from rng
// exactly once per operator, and the realised parameters are applied to
// each target, so a rotation rotates every slice and its mask identically.
// The input matrices are never modified.
func (c *Compose) Apply(rng *rand.Rand, targets []Target) (Result, error) {
	if err := checkShapes(targets); err != nil {
		return Result{}, err
	}

	cur := make([]Target, len(targets))
	copy(cur, targets)

	var applied []Applied
	for _, op := range c.ops {
		if !fires(rng, op.Probability()) {
			continue
		}
		params, err := op.Sample(rng, canvasOf(cur))
		if err != nil {
			return Result{}, fmt.Errorf("%s: %w", op.Name(), err)
		}
		for i, t := range cur {
			out, err := op.Apply(t, params)
			if err != nil {
				return Result{}, fmt.Errorf("%s on target %d: %w", op.Name(), i, err)
			}
			cur[i] = out
		}
		applied = append(applied, Applied{Operator: op.Name(), Params: params})
	}

	return Result{Targets: cur, Applied: applied}, nil
}
