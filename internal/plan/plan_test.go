package plan

import (
	"reflect"
	"testing"
)

func TestBuildExplicitList(t *testing.T) {
	lim := DefaultLimits()
	cases := []struct {
		name string
		p    Params
		want []int
	}{
		{
			name: "compress keeps caller order",
			p:    Params{Operation: OpCompress, TargetPercentages: []int{40, 80, 60}},
			want: []int{40, 80, 60},
		},
		{
			name: "compress filters 100",
			p:    Params{Operation: OpCompress, TargetPercentages: []int{80, 100, 40}},
			want: []int{80, 40},
		},
		{
			name: "expand filters 100",
			p:    Params{Operation: OpExpand, TargetPercentages: []int{100, 150, 200}},
			want: []int{150, 200},
		},
		{
			name: "rephrase keeps 100",
			p:    Params{Operation: OpRephrase, TargetPercentages: []int{100}},
			want: []int{100},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Build(c.p, lim)
			if !reflect.DeepEqual(got.Percentages(), c.want) {
				t.Fatalf("percentages = %v, want %v", got.Percentages(), c.want)
			}
			for _, tgt := range got.Targets {
				if tgt.VersionsPerLength != 1 {
					t.Fatalf("explicit list targets get one version each, got %d", tgt.VersionsPerLength)
				}
			}
		})
	}
}

func TestBuildStepWalk(t *testing.T) {
	lim := DefaultLimits()

	// The canonical staggered compression walk.
	p := Params{Operation: OpCompress, StartPercentage: 80, TargetPercentage: 40, StepsPercentage: 10}
	got := Build(p, lim)
	want := []int{80, 70, 60, 50, 40}
	if !reflect.DeepEqual(got.Percentages(), want) {
		t.Fatalf("walk = %v, want %v", got.Percentages(), want)
	}
	for i := 1; i < len(got.Targets); i++ {
		if got.Targets[i].TargetPercentage >= got.Targets[i-1].TargetPercentage {
			t.Fatalf("compression walk must descend: %v", got.Percentages())
		}
	}
	for _, pct := range got.Percentages() {
		if pct == 100 {
			t.Fatalf("walk must not contain 100: %v", got.Percentages())
		}
	}
	if got.StartPercentage != 80 || got.StepSize != 10 {
		t.Fatalf("presentation fields = (%d, %d), want (80, 10)", got.StartPercentage, got.StepSize)
	}
	if got.Mode() != "staggered" {
		t.Fatalf("multi-length plan mode = %q, want staggered", got.Mode())
	}
}

func TestBuildStepWalkDefaults(t *testing.T) {
	lim := DefaultLimits()

	// Start defaults to 100-step, target to the compression default.
	got := Build(Params{Operation: OpCompress, StepsPercentage: 10}, lim)
	want := []int{90, 80, 70, 60, 50}
	if !reflect.DeepEqual(got.Percentages(), want) {
		t.Fatalf("default compression walk = %v, want %v", got.Percentages(), want)
	}

	// Expansion walks upward from 100+step to the expansion default.
	got = Build(Params{Operation: OpExpand, StepsPercentage: 25}, lim)
	want = []int{125, 150}
	if !reflect.DeepEqual(got.Percentages(), want) {
		t.Fatalf("default expansion walk = %v, want %v", got.Percentages(), want)
	}
	for i := 1; i < len(got.Targets); i++ {
		if got.Targets[i].TargetPercentage <= got.Targets[i-1].TargetPercentage {
			t.Fatalf("expansion walk must ascend: %v", got.Percentages())
		}
	}
}

func TestBuildStepWalkOvershoot(t *testing.T) {
	// A step that does not land on the target still includes it.
	got := Build(Params{Operation: OpCompress, StartPercentage: 80, TargetPercentage: 45, StepsPercentage: 10}, DefaultLimits())
	want := []int{80, 70, 60, 50, 45}
	if !reflect.DeepEqual(got.Percentages(), want) {
		t.Fatalf("overshoot walk = %v, want %v", got.Percentages(), want)
	}
}

func TestBuildStepWalkVersionsPerLength(t *testing.T) {
	// With an explicit target and step the versions knob means
	// versions per length, and every stop carries it.
	p := Params{Operation: OpCompress, StartPercentage: 80, TargetPercentage: 40, StepsPercentage: 20, Versions: 2}
	got := Build(p, DefaultLimits())
	if !reflect.DeepEqual(got.Percentages(), []int{80, 60, 40}) {
		t.Fatalf("walk = %v, want [80 60 40]", got.Percentages())
	}
	for _, tgt := range got.Targets {
		if tgt.VersionsPerLength != 2 {
			t.Fatalf("stop %d carries %d versions, want 2", tgt.TargetPercentage, tgt.VersionsPerLength)
		}
	}
	if got.TotalVersions() != 6 {
		t.Fatalf("total versions = %d, want 6", got.TotalVersions())
	}
}

func TestBuildInferredWalk(t *testing.T) {
	lim := DefaultLimits()

	// Without a step, versions counts stops and the spacing is even.
	p := Params{Operation: OpCompress, StartPercentage: 60, TargetPercentage: 40, Versions: 5}
	got := Build(p, lim)
	want := []int{60, 55, 50, 45, 40}
	if !reflect.DeepEqual(got.Percentages(), want) {
		t.Fatalf("inferred walk = %v, want %v", got.Percentages(), want)
	}
	for _, tgt := range got.Targets {
		if tgt.VersionsPerLength != 1 {
			t.Fatalf("inferred walk stops get one version each, got %d", tgt.VersionsPerLength)
		}
	}
	if got.StepSize != 5 {
		t.Fatalf("inferred step = %d, want 5", got.StepSize)
	}

	// Default stop count is three.
	got = Build(Params{Operation: OpCompress, StartPercentage: 80, TargetPercentage: 40}, lim)
	if !reflect.DeepEqual(got.Percentages(), []int{80, 60, 40}) {
		t.Fatalf("default stops walk = %v, want [80 60 40]", got.Percentages())
	}

	// A single stop lands on the target, not the start.
	got = Build(Params{Operation: OpCompress, StartPercentage: 80, TargetPercentage: 40, Versions: 1}, lim)
	if !reflect.DeepEqual(got.Percentages(), []int{40}) {
		t.Fatalf("single stop walk = %v, want [40]", got.Percentages())
	}

	// Expansion spreads upward.
	got = Build(Params{Operation: OpExpand, StartPercentage: 120, TargetPercentage: 200, Versions: 3}, lim)
	if !reflect.DeepEqual(got.Percentages(), []int{120, 160, 200}) {
		t.Fatalf("expansion inferred walk = %v, want [120 160 200]", got.Percentages())
	}
}

func TestBuildInferredWalkRoundingCollapse(t *testing.T) {
	// A tight range with many stops collapses duplicates after
	// rounding instead of repeating a target.
	p := Params{Operation: OpCompress, StartPercentage: 50, TargetPercentage: 48, Versions: 5}
	got := Build(p, DefaultLimits())
	want := []int{50, 49, 48}
	if !reflect.DeepEqual(got.Percentages(), want) {
		t.Fatalf("collapsed walk = %v, want %v", got.Percentages(), want)
	}
}

func TestBuildSingleTarget(t *testing.T) {
	lim := DefaultLimits()

	got := Build(Params{Operation: OpCompress, TargetPercentage: 50, Versions: 3}, lim)
	if len(got.Targets) != 1 {
		t.Fatalf("single target plan has %d targets", len(got.Targets))
	}
	if got.Targets[0] != (LengthTarget{TargetPercentage: 50, VersionsPerLength: 3}) {
		t.Fatalf("target = %+v", got.Targets[0])
	}
	if got.Mode() != "fixed" {
		t.Fatalf("single-length plan mode = %q, want fixed", got.Mode())
	}

	// Version count clamps to the maximum.
	got = Build(Params{Operation: OpCompress, TargetPercentage: 50, Versions: 9}, lim)
	if got.Targets[0].VersionsPerLength != lim.MaxVersions {
		t.Fatalf("versions clamp = %d, want %d", got.Targets[0].VersionsPerLength, lim.MaxVersions)
	}
}

func TestBuildDefaults(t *testing.T) {
	lim := DefaultLimits()
	cases := []struct {
		op   Operation
		want int
	}{
		{OpCompress, 50},
		{OpExpand, 150},
		{OpRephrase, 100},
	}
	for _, c := range cases {
		got := Build(Params{Operation: c.op}, lim)
		if len(got.Targets) != 1 || got.Targets[0].TargetPercentage != c.want || got.Targets[0].VersionsPerLength != 1 {
			t.Fatalf("%s default plan = %+v, want single %d%% with 1 version", c.op, got.Targets, c.want)
		}
	}

	// Versions alone keeps the default target but honors the count.
	got := Build(Params{Operation: OpRephrase, Versions: 3}, lim)
	if got.Targets[0].TargetPercentage != 100 || got.Targets[0].VersionsPerLength != 3 {
		t.Fatalf("rephrase versions-only plan = %+v", got.Targets)
	}
}

func TestRephraseIgnoresWalkParams(t *testing.T) {
	// Steps and start have no meaning for rephrase; the plan stays a
	// single 100% target.
	p := Params{Operation: OpRephrase, StartPercentage: 80, StepsPercentage: 10, Versions: 2}
	got := Build(p, DefaultLimits())
	if len(got.Targets) != 1 || got.Targets[0].TargetPercentage != 100 {
		t.Fatalf("rephrase plan = %+v, want single 100%%", got.Targets)
	}
	if got.Targets[0].VersionsPerLength != 2 {
		t.Fatalf("rephrase versions = %d, want 2", got.Targets[0].VersionsPerLength)
	}
}

func TestFormatTargets(t *testing.T) {
	p := Build(Params{Operation: OpCompress, StartPercentage: 80, TargetPercentage: 40, StepsPercentage: 20}, DefaultLimits())
	want := []string{"80%", "60%", "40%"}
	if !reflect.DeepEqual(p.FormatTargets(), want) {
		t.Fatalf("FormatTargets = %v, want %v", p.FormatTargets(), want)
	}
}
