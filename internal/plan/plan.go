// Package plan computes the ordered list of (target percentage,
// versions per length) pairs a transformation request asks for. The
// plan is the source of truth downstream: the prompt assembler renders
// it into instructions and the reconciler measures the model response
// against it.
package plan

import (
	"fmt"
	"math"
)

// Operation selects the transformation direction.
type Operation string

const (
	OpCompress Operation = "compress"
	OpExpand   Operation = "expand"
	OpRephrase Operation = "rephrase"
)

// Expansion reports whether the operation grows the text.
func (op Operation) Expansion() bool { return op == OpExpand }

// Limits is the static planning policy: percentage bounds per
// direction, step bounds, and version caps. Loaded once from config
// and shared read-only across requests.
type Limits struct {
	MaxVersions int

	MinCompression     int
	MaxCompression     int
	DefaultCompression int

	MinExpansion     int
	MaxExpansion     int
	DefaultExpansion int

	MinStep int
	MaxStep int

	// DefaultStops is the stop count assumed when a start and target
	// are given without a step or an explicit count.
	DefaultStops int
}

// DefaultLimits returns the stock policy.
func DefaultLimits() Limits {
	return Limits{
		MaxVersions:        5,
		MinCompression:     10,
		MaxCompression:     90,
		DefaultCompression: 50,
		MinExpansion:       110,
		MaxExpansion:       300,
		DefaultExpansion:   150,
		MinStep:            10,
		MaxStep:            50,
		DefaultStops:       3,
	}
}

// DefaultTarget is the percentage used when a request names no target.
func (l Limits) DefaultTarget(op Operation) int {
	switch op {
	case OpExpand:
		return l.DefaultExpansion
	case OpCompress:
		return l.DefaultCompression
	default:
		return 100
	}
}

// Params are the planning knobs extracted from a validated request.
// Zero values mean "not provided"; percentages are never legitimately
// zero.
type Params struct {
	Operation         Operation
	TargetPercentage  int
	TargetPercentages []int
	StartPercentage   int
	StepsPercentage   int
	Versions          int
}

// LengthTarget is one expected output length.
type LengthTarget struct {
	TargetPercentage  int
	VersionsPerLength int
}

// Plan is the ordered sequence of length targets plus the presentation
// fields surfaced in response metadata for staggered requests.
type Plan struct {
	Operation Operation
	Targets   []LengthTarget

	// StartPercentage and StepSize are non-zero only for plans built
	// from a staggered walk.
	StartPercentage int
	StepSize        int
}

// Build computes the plan for validated params. Cases are tried in
// priority order and the first match wins:
//
//  1. explicit target_percentages list
//  2. step-driven walk (steps_percentage present)
//  3. start+target with an inferred step
//  4. single target_percentage
//  5. operation default
//
// An explicit target always bounds a walk, even when start, step, and
// versions are all present and imply a different stop count.
func Build(p Params, lim Limits) Plan {
	if len(p.TargetPercentages) > 0 {
		return explicitList(p)
	}
	if p.Operation != OpRephrase {
		if p.StepsPercentage > 0 {
			return stepWalk(p, lim)
		}
		if p.StartPercentage > 0 && p.TargetPercentage > 0 {
			return inferredWalk(p, lim)
		}
	}
	target := p.TargetPercentage
	if target == 0 {
		target = lim.DefaultTarget(p.Operation)
	}
	return Plan{
		Operation: p.Operation,
		Targets:   []LengthTarget{{TargetPercentage: target, VersionsPerLength: clampVersions(p.Versions, lim)}},
	}
}

// explicitList keeps the caller's ordering. 100% entries are a no-op
// for compress/expand and are dropped; rephrase keeps them since 100
// is its natural target.
func explicitList(p Params) Plan {
	targets := make([]LengthTarget, 0, len(p.TargetPercentages))
	for _, pct := range p.TargetPercentages {
		if pct == 100 && p.Operation != OpRephrase {
			continue
		}
		targets = append(targets, LengthTarget{TargetPercentage: pct, VersionsPerLength: 1})
	}
	return Plan{Operation: p.Operation, Targets: targets}
}

// stepWalk walks from start toward target in step increments,
// inclusive of both ends. When the walk overshoots, the target itself
// becomes the final stop.
func stepWalk(p Params, lim Limits) Plan {
	step := p.StepsPercentage
	dir := 1
	if !p.Operation.Expansion() {
		dir = -1
	}
	target := p.TargetPercentage
	if target == 0 {
		target = lim.DefaultTarget(p.Operation)
	}
	start := p.StartPercentage
	if start == 0 {
		start = 100 + dir*step
	}
	versions := clampVersions(p.Versions, lim)

	var stops []int
	cur := start
	for {
		if (dir < 0 && cur < target) || (dir > 0 && cur > target) {
			// Overshot: close the walk on the target itself.
			if len(stops) == 0 || stops[len(stops)-1] != target {
				stops = append(stops, target)
			}
			break
		}
		stops = append(stops, cur)
		if cur == target {
			break
		}
		cur += dir * step
	}

	targets := make([]LengthTarget, 0, len(stops))
	for _, s := range stops {
		if s == 100 {
			continue
		}
		targets = append(targets, LengthTarget{TargetPercentage: s, VersionsPerLength: versions})
	}
	return Plan{Operation: p.Operation, Targets: targets, StartPercentage: start, StepSize: step}
}

// inferredWalk spreads the requested number of stops evenly between
// start and target, both inclusive. Versions counts stops here, not
// alternatives per stop; each stop yields one version.
func inferredWalk(p Params, lim Limits) Plan {
	stops := p.Versions
	if stops == 0 {
		stops = lim.DefaultStops
	}
	if stops > lim.MaxVersions {
		stops = lim.MaxVersions
	}
	if stops < 1 {
		stops = 1
	}
	if stops == 1 {
		return Plan{
			Operation: p.Operation,
			Targets:   []LengthTarget{{TargetPercentage: p.TargetPercentage, VersionsPerLength: 1}},
		}
	}

	span := float64(p.TargetPercentage-p.StartPercentage) / float64(stops-1)
	targets := make([]LengthTarget, 0, stops)
	for i := 0; i < stops; i++ {
		pct := int(math.Round(float64(p.StartPercentage) + span*float64(i)))
		if pct == 100 && p.Operation != OpRephrase {
			continue
		}
		// Rounding can collapse neighboring stops; keep one.
		if n := len(targets); n > 0 && targets[n-1].TargetPercentage == pct {
			continue
		}
		targets = append(targets, LengthTarget{TargetPercentage: pct, VersionsPerLength: 1})
	}
	step := int(math.Round(math.Abs(span)))
	return Plan{Operation: p.Operation, Targets: targets, StartPercentage: p.StartPercentage, StepSize: step}
}

func clampVersions(v int, lim Limits) int {
	if v < 1 {
		return 1
	}
	if v > lim.MaxVersions {
		return lim.MaxVersions
	}
	return v
}

// Staggered reports whether the plan spans several distinct lengths.
func (p Plan) Staggered() bool { return len(p.Targets) > 1 }

// Mode is the metadata name for the plan shape.
func (p Plan) Mode() string {
	if p.Staggered() {
		return "staggered"
	}
	return "fixed"
}

// Percentages lists the target percentages in plan order.
func (p Plan) Percentages() []int {
	out := make([]int, len(p.Targets))
	for i, t := range p.Targets {
		out[i] = t.TargetPercentage
	}
	return out
}

// FormatTargets renders the targets as "NN%" strings for metadata and
// prompt text.
func (p Plan) FormatTargets() []string {
	out := make([]string, len(p.Targets))
	for i, t := range p.Targets {
		out[i] = fmt.Sprintf("%d%%", t.TargetPercentage)
	}
	return out
}

// VersionsPerLength is the version count shared by the plan's targets.
// Walk- and list-built plans always carry a uniform count.
func (p Plan) VersionsPerLength() int {
	if len(p.Targets) == 0 {
		return 0
	}
	return p.Targets[0].VersionsPerLength
}

// TotalVersions is the number of output slots across all targets.
func (p Plan) TotalVersions() int {
	n := 0
	for _, t := range p.Targets {
		n += t.VersionsPerLength
	}
	return n
}
