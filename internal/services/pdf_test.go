package services

import (
	"testing"

	"github.com/ArtisanClarinets/eccb-backend/internal/types"
)

func TestBuildCuttingPlan(t *testing.T) {
	meta := func(parts ...types.ExtractedPart) *types.ExtractedMetadata {
		return &types.ExtractedMetadata{Parts: parts}
	}

	tests := []struct {
		name      string
		meta      *types.ExtractedMetadata
		pageCount int
		want      []types.CuttingInstruction
	}{
		{
			name:      "nil metadata",
			meta:      nil,
			pageCount: 10,
			want:      nil,
		},
		{
			name:      "no detected parts",
			meta:      meta(),
			pageCount: 10,
			want:      nil,
		},
		{
			name: "full coverage",
			meta: meta(
				types.ExtractedPart{Instrument: "Flute", PageStart: 1, PageEnd: 4},
				types.ExtractedPart{Instrument: "Oboe", PageStart: 5, PageEnd: 8},
			),
			pageCount: 8,
			want: []types.CuttingInstruction{
				{PartNumber: 1, Instrument: "Flute", PageStart: 1, PageEnd: 4},
				{PartNumber: 2, Instrument: "Oboe", PageStart: 5, PageEnd: 8},
			},
		},
		{
			name: "gaps before between and after",
			meta: meta(
				types.ExtractedPart{Instrument: "Trumpet", PageStart: 3, PageEnd: 4},
				types.ExtractedPart{Instrument: "Horn", PageStart: 7, PageEnd: 8},
			),
			pageCount: 10,
			want: []types.CuttingInstruction{
				{PartNumber: 1, PageStart: 1, PageEnd: 2, IsGap: true},
				{PartNumber: 2, Instrument: "Trumpet", PageStart: 3, PageEnd: 4},
				{PartNumber: 3, PageStart: 5, PageEnd: 6, IsGap: true},
				{PartNumber: 4, Instrument: "Horn", PageStart: 7, PageEnd: 8},
				{PartNumber: 5, PageStart: 9, PageEnd: 10, IsGap: true},
			},
		},
		{
			name: "unsorted input ordered by page",
			meta: meta(
				types.ExtractedPart{Instrument: "Tuba", PageStart: 5, PageEnd: 6},
				types.ExtractedPart{Instrument: "Piccolo", PageStart: 1, PageEnd: 4},
			),
			pageCount: 6,
			want: []types.CuttingInstruction{
				{PartNumber: 1, Instrument: "Piccolo", PageStart: 1, PageEnd: 4},
				{PartNumber: 2, Instrument: "Tuba", PageStart: 5, PageEnd: 6},
			},
		},
		{
			name: "range clamped to document",
			meta: meta(
				types.ExtractedPart{Instrument: "Clarinet", PageStart: 1, PageEnd: 12},
			),
			pageCount: 5,
			want: []types.CuttingInstruction{
				{PartNumber: 1, Instrument: "Clarinet", PageStart: 1, PageEnd: 5},
			},
		},
		{
			name: "invalid ranges skipped",
			meta: meta(
				types.ExtractedPart{Instrument: "Ghost", PageStart: 0, PageEnd: 2},
				types.ExtractedPart{Instrument: "Backwards", PageStart: 4, PageEnd: 2},
				types.ExtractedPart{Instrument: "Flute", PageStart: 1, PageEnd: 3},
			),
			pageCount: 3,
			want: []types.CuttingInstruction{
				{PartNumber: 1, Instrument: "Flute", PageStart: 1, PageEnd: 3},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := BuildCuttingPlan(tc.meta, tc.pageCount)
			if len(got) != len(tc.want) {
				t.Fatalf("plan length %d, want %d: %+v", len(got), len(tc.want), got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("entry %d = %+v, want %+v", i, got[i], tc.want[i])
				}
			}
		})
	}
}
