package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SessionStatus string

const (
	SessionStatusPendingReview SessionStatus = "PENDING_REVIEW"
	SessionStatusApproved      SessionStatus = "APPROVED"
	SessionStatusRejected      SessionStatus = "REJECTED"
)

type ParseStatus string

const (
	ParseStatusNone    ParseStatus = "NONE"
	ParseStatusParsing ParseStatus = "PARSING"
	ParseStatusParsed  ParseStatus = "PARSED"
	ParseStatusFailed  ParseStatus = "PARSE_FAILED"
)

type SecondPassStatus string

const (
	SecondPassNone       SecondPassStatus = "NONE"
	SecondPassQueued     SecondPassStatus = "QUEUED"
	SecondPassInProgress SecondPassStatus = "IN_PROGRESS"
	SecondPassComplete   SecondPassStatus = "COMPLETE"
	SecondPassFailed     SecondPassStatus = "FAILED"
)

// ExtractedPart is one instrument part the extractor detected inside
// the uploaded score. Page numbers are 1-based; 0 means unknown.
type ExtractedPart struct {
	Instrument    string `json:"instrument"`
	PartLabel     string `json:"part_label,omitempty"`
	Section       string `json:"section,omitempty"`
	Transposition string `json:"transposition,omitempty"`
	PageStart     int    `json:"page_start,omitempty"`
	PageEnd       int    `json:"page_end,omitempty"`
}

// ExtractedMetadata is the structured output of the AI extractor,
// validated where it enters the pipeline.
type ExtractedMetadata struct {
	Title           string          `json:"title"`
	Composer        string          `json:"composer,omitempty"`
	Publisher       string          `json:"publisher,omitempty"`
	Instrument      string          `json:"instrument,omitempty"`
	ConfidenceScore int             `json:"confidence_score"`
	FileType        FileType        `json:"file_type,omitempty"`
	IsMultiPart     bool            `json:"is_multi_part"`
	Parts           []ExtractedPart `json:"parts,omitempty"`
	EnsembleType    string          `json:"ensemble_type,omitempty"`
	KeySignature    string          `json:"key_signature,omitempty"`
	TimeSignature   string          `json:"time_signature,omitempty"`
	Tempo           string          `json:"tempo,omitempty"`
}

func (m *ExtractedMetadata) Validate() error {
	if m.ConfidenceScore < 0 || m.ConfidenceScore > 100 {
		return fmt.Errorf("confidence_score %d out of range [0,100]", m.ConfidenceScore)
	}
	switch m.FileType {
	case "", FileTypeFullScore, FileTypeConductorScore, FileTypePart, FileTypeCondensedScore:
	default:
		return fmt.Errorf("unknown file_type %q", m.FileType)
	}
	for i, p := range m.Parts {
		if p.Instrument == "" {
			return fmt.Errorf("parts[%d]: missing instrument", i)
		}
		if p.PageStart < 0 || p.PageEnd < 0 || (p.PageEnd > 0 && p.PageStart > p.PageEnd) {
			return fmt.Errorf("parts[%d]: invalid page range %d-%d", i, p.PageStart, p.PageEnd)
		}
	}
	return nil
}

// SplitPart is a part whose pages were already cut into a standalone
// PDF before review. StorageKey points at the temporary object.
type SplitPart struct {
	Instrument    string `json:"instrument"`
	PartLabel     string `json:"part_label,omitempty"`
	Section       string `json:"section,omitempty"`
	Transposition string `json:"transposition,omitempty"`
	PageStart     int    `json:"page_start"`
	PageEnd       int    `json:"page_end"`
	PageCount     int    `json:"page_count"`
	SizeBytes     int64  `json:"size_bytes"`
	StorageKey    string `json:"storage_key"`
	FileName      string `json:"file_name"`
}

// CuttingInstruction assigns a page range to a part, in cover order.
// Gap entries mark pages no detected part covers; they exist so the
// review UI can show uncovered pages instead of silently dropping them.
type CuttingInstruction struct {
	PartNumber int    `json:"part_number"`
	Instrument string `json:"instrument,omitempty"`
	PageStart  int    `json:"page_start"`
	PageEnd    int    `json:"page_end"`
	IsGap      bool   `json:"is_gap,omitempty"`
}

// legacyGapSentinel is the part-number threshold some upstream
// extractors use to flag uncovered ranges. Normalized to IsGap on ingest.
const legacyGapSentinel = 9900

// NormalizeCuttingPlan converts legacy gap-sentinel part numbers into
// the explicit IsGap flag.
func NormalizeCuttingPlan(plan []CuttingInstruction) []CuttingInstruction {
	out := make([]CuttingInstruction, len(plan))
	for i, ci := range plan {
		if ci.PartNumber >= legacyGapSentinel {
			ci.IsGap = true
		}
		out[i] = ci
	}
	return out
}

// UploadSession is one uploaded PDF awaiting a review decision.
// Terminal once approved or rejected.
type UploadSession struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	OriginalName     string           `gorm:"column:original_name;not null" json:"original_name"`
	MimeType         string           `gorm:"column:mime_type" json:"mime_type"`
	SizeBytes        int64            `gorm:"column:size_bytes" json:"size_bytes"`
	StorageKey       string           `gorm:"column:storage_key;not null" json:"storage_key"`
	Extracted        datatypes.JSON   `gorm:"column:extracted;type:jsonb" json:"extracted,omitempty"`
	SplitParts       datatypes.JSON   `gorm:"column:split_parts;type:jsonb" json:"split_parts,omitempty"`
	CuttingPlan      datatypes.JSON   `gorm:"column:cutting_plan;type:jsonb" json:"cutting_plan,omitempty"`
	TempStorageKeys  datatypes.JSON   `gorm:"column:temp_storage_keys;type:jsonb" json:"temp_storage_keys,omitempty"`
	Status           SessionStatus    `gorm:"column:status;not null;index" json:"status"`
	ParseStatus      ParseStatus      `gorm:"column:parse_status;not null" json:"parse_status"`
	SecondPassStatus SecondPassStatus `gorm:"column:second_pass_status;not null" json:"second_pass_status"`
	AutoApproved     bool             `gorm:"column:auto_approved;not null" json:"auto_approved"`
	ReviewedBy       *uuid.UUID       `gorm:"column:reviewed_by;type:uuid" json:"reviewed_by,omitempty"`
	ReviewedAt       *time.Time       `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`
	RejectReason     string           `gorm:"column:reject_reason" json:"reject_reason,omitempty"`
	CreatedAt        time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"not null" json:"updated_at"`
	DeletedAt        gorm.DeletedAt   `gorm:"index" json:"deleted_at,omitempty"`
}

func (UploadSession) TableName() string { return "upload_session" }

func (s *UploadSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *UploadSession) Metadata() (*ExtractedMetadata, error) {
	if len(s.Extracted) == 0 {
		return nil, nil
	}
	var m ExtractedMetadata
	if err := json.Unmarshal(s.Extracted, &m); err != nil {
		return nil, fmt.Errorf("decode extracted metadata: %w", err)
	}
	return &m, nil
}

func (s *UploadSession) SetMetadata(m *ExtractedMetadata) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	s.Extracted = datatypes.JSON(raw)
	return nil
}

func (s *UploadSession) DecodeSplitParts() ([]SplitPart, error) {
	if len(s.SplitParts) == 0 {
		return nil, nil
	}
	var parts []SplitPart
	if err := json.Unmarshal(s.SplitParts, &parts); err != nil {
		return nil, fmt.Errorf("decode split parts: %w", err)
	}
	return parts, nil
}

func (s *UploadSession) SetSplitParts(parts []SplitPart) error {
	raw, err := json.Marshal(parts)
	if err != nil {
		return err
	}
	s.SplitParts = datatypes.JSON(raw)
	return nil
}

func (s *UploadSession) DecodeCuttingPlan() ([]CuttingInstruction, error) {
	if len(s.CuttingPlan) == 0 {
		return nil, nil
	}
	var plan []CuttingInstruction
	if err := json.Unmarshal(s.CuttingPlan, &plan); err != nil {
		return nil, fmt.Errorf("decode cutting plan: %w", err)
	}
	return NormalizeCuttingPlan(plan), nil
}

func (s *UploadSession) SetCuttingPlan(plan []CuttingInstruction) error {
	raw, err := json.Marshal(NormalizeCuttingPlan(plan))
	if err != nil {
		return err
	}
	s.CuttingPlan = datatypes.JSON(raw)
	return nil
}

func (s *UploadSession) TempKeys() ([]string, error) {
	if len(s.TempStorageKeys) == 0 {
		return nil, nil
	}
	var keys []string
	if err := json.Unmarshal(s.TempStorageKeys, &keys); err != nil {
		return nil, fmt.Errorf("decode temp storage keys: %w", err)
	}
	return keys, nil
}

func (s *UploadSession) SetTempKeys(keys []string) error {
	raw, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	s.TempStorageKeys = datatypes.JSON(raw)
	return nil
}
