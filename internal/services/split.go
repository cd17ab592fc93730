package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ArtisanClarinets/eccb-backend/internal/apperr"
	"github.com/ArtisanClarinets/eccb-backend/internal/types"
)

// splitAndUploadParts cuts the original PDF along the non-gap entries
// of the plan and uploads each part as a temporary object. Returns the
// split part records and the storage keys created.
func splitAndUploadParts(ctx context.Context, pdf PDFService, bucket BucketService, sessionID uuid.UUID, original []byte, meta *types.ExtractedMetadata, plan []types.CuttingInstruction) ([]types.SplitPart, []string, error) {
	var parts []types.SplitPart
	var keys []string
	partIdx := 0
	for _, ci := range plan {
		if ci.IsGap {
			continue
		}
		buf, err := pdf.ExtractPages(original, ci.PageStart, ci.PageEnd)
		if err != nil {
			return nil, nil, apperr.Dependency("split part pages", err)
		}
		partIdx++
		key := fmt.Sprintf("uploads/%s/parts/%03d.pdf", sessionID, partIdx)
		if err := bucket.Upload(ctx, key, buf, "application/pdf", map[string]string{
			"upload_session": sessionID.String(),
			"instrument":     ci.Instrument,
		}); err != nil {
			return nil, nil, apperr.Dependency("upload split part", err)
		}
		keys = append(keys, key)

		sp := types.SplitPart{
			Instrument: ci.Instrument,
			PageStart:  ci.PageStart,
			PageEnd:    ci.PageEnd,
			PageCount:  ci.PageEnd - ci.PageStart + 1,
			SizeBytes:  int64(len(buf)),
			StorageKey: key,
			FileName:   fmt.Sprintf("%s.pdf", strings.ReplaceAll(strings.ToLower(ci.Instrument), " ", "-")),
		}
		for _, ep := range meta.Parts {
			if ep.Instrument == ci.Instrument && ep.PageStart == ci.PageStart {
				sp.PartLabel = ep.PartLabel
				sp.Section = ep.Section
				sp.Transposition = ep.Transposition
				break
			}
		}
		parts = append(parts, sp)
	}
	return parts, keys, nil
}
