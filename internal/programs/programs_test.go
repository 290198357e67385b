package programs

import (
	"testing"

	"github.com/gogpu/postfx/pass"
)

func TestCatalogueMatchesConstants(t *testing.T) {
	tests := []struct {
		program string
		last    int
		name    string
	}{
		{TAA, TAADebugDepth, "DebugDepth"},
		{DoF, DoFShapeHighQualityMergeDilateFg, "ShapeHighQualityMergeDilateFg"},
		{DoFMedian, MedianMedian3x3, "Median3x3"},
		{DoFBokeh, BokehCollect, "Collect"},
		{SSR, SSRPoissonBlur, "PoissonBlur"},
		{Tonemap, TonemapOneDDebug, "OneDDebug"},
		{Blit, 0, "Copy"},
	}
	for _, tt := range tests {
		t.Run(tt.program, func(t *testing.T) {
			prog, ok := pass.Lookup(tt.program)
			if !ok {
				t.Fatalf("program %q not registered", tt.program)
			}
			if prog.Len() != tt.last+1 {
				t.Errorf("Len() = %d, want %d", prog.Len(), tt.last+1)
			}
			if got := prog.PassName(tt.last); got != tt.name {
				t.Errorf("PassName(%d) = %q, want %q", tt.last, got, tt.name)
			}
		})
	}
}

func TestDoFPassNumbering(t *testing.T) {
	// Spot checks against the fixed pass table.
	checks := map[int]string{
		DoFCaptureCoc:              "CaptureCoc",
		DoFCocPrefilter:            "CocPrefilter",
		DoFMerge:                   "Merge",
		DoFMergeExplicitBicubic:    "MergeExplicitBicubic",
		DoFShapeLowQuality:         "ShapeLowQuality",
		DoFShapeMediumQualityMerge: "ShapeMediumQualityMerge",
	}
	prog, _ := pass.Lookup(DoF)
	for idx, name := range checks {
		if got := prog.PassName(idx); got != name {
			t.Errorf("PassName(%d) = %q, want %q", idx, got, name)
		}
	}
	if DoFMerge != 13 || DoFShapeLowQuality != 17 || DoFShapeHighQualityMergeDilateFg != 28 {
		t.Error("DoF pass indices drifted from the fixed table")
	}
}

func TestPasses(t *testing.T) {
	ps := Passes(SSR)
	if len(ps) != 17 || ps[16].Index != 16 {
		t.Errorf("Passes(ssr) = %v", ps)
	}
	if Passes("missing") != nil {
		t.Error("Passes(missing) should be nil")
	}
}
