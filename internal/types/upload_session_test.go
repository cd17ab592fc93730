package types

import (
	"strings"
	"testing"
)

func TestNormalizeCuttingPlan(t *testing.T) {
	plan := []CuttingInstruction{
		{PartNumber: 1, Instrument: "Flute", PageStart: 1, PageEnd: 3},
		{PartNumber: 9900, PageStart: 4, PageEnd: 4},
		{PartNumber: 9901, PageStart: 5, PageEnd: 6},
		{PartNumber: 2, Instrument: "Tuba", PageStart: 7, PageEnd: 8, IsGap: true},
	}
	got := NormalizeCuttingPlan(plan)
	wantGap := []bool{false, true, true, true}
	for i, ci := range got {
		if ci.IsGap != wantGap[i] {
			t.Fatalf("entry %d IsGap = %v, want %v", i, ci.IsGap, wantGap[i])
		}
	}
	// Input must not be mutated.
	if plan[1].IsGap {
		t.Fatalf("NormalizeCuttingPlan mutated its input")
	}
}

func TestCuttingPlanRoundTripNormalizes(t *testing.T) {
	var s UploadSession
	if err := s.SetCuttingPlan([]CuttingInstruction{
		{PartNumber: 9950, PageStart: 1, PageEnd: 2},
	}); err != nil {
		t.Fatalf("set plan: %v", err)
	}
	plan, err := s.DecodeCuttingPlan()
	if err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if len(plan) != 1 || !plan[0].IsGap {
		t.Fatalf("sentinel part number not normalized: %+v", plan)
	}
}

func TestExtractedMetadataValidate(t *testing.T) {
	tests := []struct {
		name    string
		meta    ExtractedMetadata
		wantErr string
	}{
		{
			name: "valid",
			meta: ExtractedMetadata{Title: "T", ConfidenceScore: 80, FileType: FileTypeFullScore,
				Parts: []ExtractedPart{{Instrument: "Flute", PageStart: 1, PageEnd: 2}}},
		},
		{
			name:    "confidence too high",
			meta:    ExtractedMetadata{ConfidenceScore: 101},
			wantErr: "confidence_score",
		},
		{
			name:    "confidence negative",
			meta:    ExtractedMetadata{ConfidenceScore: -1},
			wantErr: "confidence_score",
		},
		{
			name:    "unknown file type",
			meta:    ExtractedMetadata{FileType: "LEAD_SHEET"},
			wantErr: "file_type",
		},
		{
			name:    "part without instrument",
			meta:    ExtractedMetadata{Parts: []ExtractedPart{{PageStart: 1, PageEnd: 2}}},
			wantErr: "missing instrument",
		},
		{
			name:    "backwards page range",
			meta:    ExtractedMetadata{Parts: []ExtractedPart{{Instrument: "Oboe", PageStart: 5, PageEnd: 2}}},
			wantErr: "invalid page range",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.meta.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %v does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestSessionJSONHelpersEmpty(t *testing.T) {
	var s UploadSession
	if m, err := s.Metadata(); err != nil || m != nil {
		t.Fatalf("empty metadata should be nil, got %v / %v", m, err)
	}
	if p, err := s.DecodeSplitParts(); err != nil || p != nil {
		t.Fatalf("empty split parts should be nil, got %v / %v", p, err)
	}
	if k, err := s.TempKeys(); err != nil || k != nil {
		t.Fatalf("empty temp keys should be nil, got %v / %v", k, err)
	}
}
