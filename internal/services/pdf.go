package services

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/ArtisanClarinets/eccb-backend/internal/logger"
	"github.com/ArtisanClarinets/eccb-backend/internal/types"
)

// PDFService splits PDFs by page range. Page numbers are 1-based and
// inclusive, matching the cutting plan.
type PDFService interface {
	PageCount(pdf []byte) (int, error)
	ExtractPages(pdf []byte, from, to int) ([]byte, error)
}

type pdfService struct {
	log *logger.Logger
}

func NewPDFService(log *logger.Logger) PDFService {
	return &pdfService{log: log.With("service", "PDFService")}
}

func (s *pdfService) PageCount(pdf []byte) (int, error) {
	count, err := api.PageCount(bytes.NewReader(pdf), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return count, nil
}

func (s *pdfService) ExtractPages(pdf []byte, from, to int) ([]byte, error) {
	if from < 1 || to < from {
		return nil, fmt.Errorf("invalid page range %d-%d", from, to)
	}
	var out bytes.Buffer
	sel := []string{fmt.Sprintf("%d-%d", from, to)}
	if err := api.Trim(bytes.NewReader(pdf), &out, sel, nil); err != nil {
		return nil, fmt.Errorf("failed to extract pages %d-%d: %w", from, to, err)
	}
	return out.Bytes(), nil
}

// BuildCuttingPlan turns the extractor's detected parts into an ordered
// page-range assignment over the whole document. Pages no part covers
// become explicit gap entries so the reviewer sees them instead of the
// pipeline silently dropping them.
func BuildCuttingPlan(meta *types.ExtractedMetadata, pageCount int) []types.CuttingInstruction {
	if meta == nil || pageCount < 1 {
		return nil
	}

	type ranged struct {
		part types.ExtractedPart
		idx  int
	}
	var covered []ranged
	for i, p := range meta.Parts {
		if p.PageStart < 1 || p.PageEnd < p.PageStart {
			continue
		}
		end := p.PageEnd
		if end > pageCount {
			end = pageCount
		}
		cp := p
		cp.PageEnd = end
		covered = append(covered, ranged{part: cp, idx: i})
	}
	sort.SliceStable(covered, func(i, j int) bool {
		return covered[i].part.PageStart < covered[j].part.PageStart
	})

	var plan []types.CuttingInstruction
	partNo := 1
	cursor := 1
	for _, r := range covered {
		if r.part.PageStart > cursor {
			plan = append(plan, types.CuttingInstruction{
				PartNumber: partNo,
				PageStart:  cursor,
				PageEnd:    r.part.PageStart - 1,
				IsGap:      true,
			})
			partNo++
		}
		plan = append(plan, types.CuttingInstruction{
			PartNumber: partNo,
			Instrument: r.part.Instrument,
			PageStart:  r.part.PageStart,
			PageEnd:    r.part.PageEnd,
		})
		partNo++
		if r.part.PageEnd+1 > cursor {
			cursor = r.part.PageEnd + 1
		}
	}
	if len(covered) > 0 && cursor <= pageCount {
		plan = append(plan, types.CuttingInstruction{
			PartNumber: partNo,
			PageStart:  cursor,
			PageEnd:    pageCount,
			IsGap:      true,
		})
	}
	return plan
}
