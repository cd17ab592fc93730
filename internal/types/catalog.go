package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FileType string

const (
	FileTypeFullScore      FileType = "FULL_SCORE"
	FileTypeConductorScore FileType = "CONDUCTOR_SCORE"
	FileTypePart           FileType = "PART"
	FileTypeCondensedScore FileType = "CONDENSED_SCORE"
)

// Piece is one work in the music catalog.
type Piece struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Title           string         `gorm:"column:title;not null" json:"title"`
	ComposerID      *uuid.UUID     `gorm:"column:composer_id;type:uuid;index" json:"composer_id,omitempty"`
	Composer        *Person        `gorm:"foreignKey:ComposerID;references:ID" json:"composer,omitempty"`
	PublisherID     *uuid.UUID     `gorm:"column:publisher_id;type:uuid;index" json:"publisher_id,omitempty"`
	Publisher       *Publisher     `gorm:"foreignKey:PublisherID;references:ID" json:"publisher,omitempty"`
	Difficulty      string         `gorm:"column:difficulty" json:"difficulty,omitempty"`
	ConfidenceScore *int           `gorm:"column:confidence_score" json:"confidence_score,omitempty"`
	Source          string         `gorm:"column:source" json:"source,omitempty"`
	EnsembleType    string         `gorm:"column:ensemble_type" json:"ensemble_type,omitempty"`
	KeySignature    string         `gorm:"column:key_signature" json:"key_signature,omitempty"`
	TimeSignature   string         `gorm:"column:time_signature" json:"time_signature,omitempty"`
	Tempo           string         `gorm:"column:tempo" json:"tempo,omitempty"`
	CreatedAt       time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Piece) TableName() string { return "piece" }

func (p *Piece) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PieceFile is one physical PDF retained for a piece: the full score
// or a single extracted part. UploadSessionID traces provenance.
type PieceFile struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PieceID         uuid.UUID      `gorm:"column:piece_id;type:uuid;not null;index" json:"piece_id"`
	Piece           *Piece         `gorm:"constraint:OnDelete:CASCADE;foreignKey:PieceID;references:ID" json:"piece,omitempty"`
	FileName        string         `gorm:"column:file_name;not null" json:"file_name"`
	FileType        FileType       `gorm:"column:file_type;not null" json:"file_type"`
	SizeBytes       int64          `gorm:"column:size_bytes" json:"size_bytes"`
	MimeType        string         `gorm:"column:mime_type" json:"mime_type"`
	StorageKey      string         `gorm:"column:storage_key;not null" json:"storage_key"`
	UploadedBy      uuid.UUID      `gorm:"column:uploaded_by;type:uuid" json:"uploaded_by"`
	UploadSessionID *uuid.UUID     `gorm:"column:upload_session_id;type:uuid;index" json:"upload_session_id,omitempty"`
	PartLabel       string         `gorm:"column:part_label" json:"part_label,omitempty"`
	InstrumentName  string         `gorm:"column:instrument_name" json:"instrument_name,omitempty"`
	Section         string         `gorm:"column:section" json:"section,omitempty"`
	PartNumber      *int           `gorm:"column:part_number" json:"part_number,omitempty"`
	PageCount       *int           `gorm:"column:page_count" json:"page_count,omitempty"`
	CreatedAt       time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (PieceFile) TableName() string { return "piece_file" }

func (f *PieceFile) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// PiecePart links a piece to an instrument and to the file holding the
// part's pages. Section, transposition, page count and storage key are
// duplicated from the file for query convenience.
type PiecePart struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PieceID       uuid.UUID      `gorm:"column:piece_id;type:uuid;not null;index" json:"piece_id"`
	Piece         *Piece         `gorm:"constraint:OnDelete:CASCADE;foreignKey:PieceID;references:ID" json:"piece,omitempty"`
	InstrumentID  uuid.UUID      `gorm:"column:instrument_id;type:uuid;not null;index" json:"instrument_id"`
	Instrument    *Instrument    `gorm:"foreignKey:InstrumentID;references:ID" json:"instrument,omitempty"`
	FileID        uuid.UUID      `gorm:"column:file_id;type:uuid;not null;index" json:"file_id"`
	File          *PieceFile     `gorm:"constraint:OnDelete:CASCADE;foreignKey:FileID;references:ID" json:"file,omitempty"`
	PartLabel     string         `gorm:"column:part_label" json:"part_label,omitempty"`
	Section       string         `gorm:"column:section" json:"section,omitempty"`
	Transposition string         `gorm:"column:transposition" json:"transposition,omitempty"`
	PageCount     *int           `gorm:"column:page_count" json:"page_count,omitempty"`
	StorageKey    string         `gorm:"column:storage_key" json:"storage_key,omitempty"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (PiecePart) TableName() string { return "piece_part" }

func (p *PiecePart) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
