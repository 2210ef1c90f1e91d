package models

import (
	"time"

	"github.com/google/uuid"
)

// IdentifierCategory is a HIPAA identifier category. The 18 built-in
// categories follow the Safe Harbor list; deployments may add custom
// categories (e.g. CUSTOM_MRN) through configuration.
type IdentifierCategory string

const (
	CategoryName        IdentifierCategory = "NAME"
	CategoryAddress     IdentifierCategory = "ADDRESS"
	CategoryDate        IdentifierCategory = "DATE"
	CategoryPhone       IdentifierCategory = "PHONE"
	CategoryFax         IdentifierCategory = "FAX"
	CategoryEmail       IdentifierCategory = "EMAIL"
	CategorySSN         IdentifierCategory = "SSN"
	CategoryMRN         IdentifierCategory = "MRN"
	CategoryHealthPlan  IdentifierCategory = "HEALTH_PLAN"
	CategoryAccount     IdentifierCategory = "ACCOUNT"
	CategoryCertificate IdentifierCategory = "CERTIFICATE"
	CategoryVehicleID   IdentifierCategory = "VEHICLE_ID"
	CategoryDeviceID    IdentifierCategory = "DEVICE_ID"
	CategoryURL         IdentifierCategory = "URL"
	CategoryIPAddress   IdentifierCategory = "IP_ADDRESS"
	CategoryBiometric   IdentifierCategory = "BIOMETRIC"
	CategoryPhoto       IdentifierCategory = "PHOTO"
	CategoryOther       IdentifierCategory = "OTHER"
)

// Source identifies which detector produced an occurrence.
type Source string

const (
	SourceRule     Source = "RULE"
	SourceNER      Source = "NER"
	SourceZeroShot Source = "ZERO_SHOT"
)

// RiskLevel is the per-document risk verdict.
type RiskLevel string

const (
	RiskNone   RiskLevel = "NONE"
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Occurrence is a single detected identifier span. Offsets are byte
// offsets into the extracted text, half-open [Start, End).
type Occurrence struct {
	Category    IdentifierCategory `json:"category"`
	Start       int                `json:"start"`
	End         int                `json:"end"`
	Source      Source             `json:"source"`
	Score       float64            `json:"score"`
	MatchedText string             `json:"matched_text,omitempty"`
}

// ExtractionMetadata describes how a document's text was obtained.
type ExtractionMetadata struct {
	Method     string `json:"extraction_method,omitempty"`
	PageCount  int    `json:"page_count,omitempty"`
	WordCount  int    `json:"word_count,omitempty"`
	CharCount  int    `json:"char_count,omitempty"`
	OCRApplied bool   `json:"ocr_applied,omitempty"`
}

// Document is the unit of classification: extracted text plus identity
// and extraction metadata. The engine never reads raw file bytes.
type Document struct {
	ID         uuid.UUID          `json:"id"`
	Filename   string             `json:"filename"`
	Text       string             `json:"text"`
	Extraction ExtractionMetadata `json:"extraction"`
}

// ClassificationResult is the engine's verdict for one document.
//
// Invariants: ContainsPHI == (TotalIdentifiers > 0), and RiskLevel is a
// monotone function of the identifier count under fixed thresholds.
type ClassificationResult struct {
	DocumentID            uuid.UUID                  `json:"document_id"`
	Filename              string                     `json:"filename"`
	ContainsPHI           bool                       `json:"contains_phi"`
	Confidence            float64                    `json:"confidence"`
	RiskLevel             RiskLevel                  `json:"risk_level"`
	TotalIdentifiers      int                        `json:"total_identifiers"`
	IdentifiersByCategory map[IdentifierCategory]int `json:"identifiers_by_category,omitempty"`
	Occurrences           []Occurrence               `json:"occurrences,omitempty"`
	RuleOnly              bool                       `json:"rule_only,omitempty"`
	ExtractionMethod      string                     `json:"extraction_method,omitempty"`
	OCRApplied            bool                       `json:"ocr_applied,omitempty"`
	ProcessedAt           time.Time                  `json:"processed_at"`
}

// DocumentFailure records a document that could not be classified,
// extraction errors being the usual cause.
type DocumentFailure struct {
	DocumentID uuid.UUID `json:"document_id"`
	Filename   string    `json:"filename"`
	Error      string    `json:"error"`
}

// BatchStatus tracks a batch job through the queue.
type BatchStatus string

const (
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusFailed    BatchStatus = "failed"
)

// BatchSummary aggregates one batch run. Failed documents are counted
// separately and never contribute to the risk tallies.
type BatchSummary struct {
	BatchID        uuid.UUID         `json:"batch_id"`
	TotalDocuments int               `json:"total_documents"`
	Processed      int               `json:"processed"`
	Failed         int               `json:"failed"`
	WithPHI        int               `json:"with_phi"`
	ByRiskLevel    map[RiskLevel]int `json:"by_risk_level"`
	StartedAt      time.Time         `json:"started_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
}

// BatchResult is the full output of a batch run.
type BatchResult struct {
	Summary  BatchSummary           `json:"summary"`
	Results  []ClassificationResult `json:"results"`
	Failures []DocumentFailure      `json:"failures,omitempty"`
}
