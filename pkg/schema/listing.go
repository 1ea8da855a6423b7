// Package schema defines the data structures shared by the marketplace engine,
// its HTTP and TCP surfaces and the client SDK.
package schema

import "fmt"

// Category is the research domain a listing belongs to.
type Category string

const (
	CategoryAntiviral Category = "Antiviral Drug Discovery"
	CategoryAntibody  Category = "Antibody Therapeutics"
	CategoryCRISPR    Category = "CRISPR Gene Editing"
	CategoryBattery   Category = "Battery Materials"
	CategoryOncology  Category = "Oncology"
	CategoryMaterials Category = "Material Science"
	CategoryOther     Category = "Other"
	CategoryAll       Category = "All"
)

// Categories lists every concrete category in display order.
var Categories = []Category{
	CategoryAntiviral,
	CategoryAntibody,
	CategoryCRISPR,
	CategoryBattery,
	CategoryOncology,
	CategoryMaterials,
	CategoryOther,
}

// FailureStage is the development stage at which the experiment failed.
type FailureStage string

const (
	StageTargetValidation FailureStage = "Target Validation"
	StageHitToLead        FailureStage = "Hit-to-Lead"
	StageLeadOptimization FailureStage = "Lead Optimization"
	StagePreclinical      FailureStage = "Preclinical"
	StageClinical         FailureStage = "Clinical Phase I/II"
	StageAll              FailureStage = "All"
)

// Stages lists every concrete failure stage in pipeline order.
var Stages = []FailureStage{
	StageTargetValidation,
	StageHitToLead,
	StageLeadOptimization,
	StagePreclinical,
	StageClinical,
}

// VerificationStatus describes how a dataset's claims were checked.
// VerificationPending is assigned to freshly uploaded listings.
type VerificationStatus string

const (
	VerificationAI         VerificationStatus = "AI Verified"
	VerificationPeer       VerificationStatus = "Peer Reviewed"
	VerificationReplicated VerificationStatus = "Replicated"
	VerificationNone       VerificationStatus = "Unverified"
	VerificationPending    VerificationStatus = "Pending Review"
)

// AnonymizationLevel is how aggressively a seller scrubbed identifying data.
type AnonymizationLevel string

const (
	AnonymizationHigh   AnonymizationLevel = "High"
	AnonymizationMedium AnonymizationLevel = "Medium"
	AnonymizationLow    AnonymizationLevel = "Low"
)

// ChartType selects how preview chart points are rendered.
type ChartType string

const (
	ChartLine    ChartType = "line"
	ChartBar     ChartType = "bar"
	ChartScatter ChartType = "scatter"
)

// ChartPoint is a single preview chart sample. Line and bar charts use
// Name/Value, scatter charts use X/Y.
type ChartPoint struct {
	Name  string  `json:"name,omitempty"`
	Value float64 `json:"value,omitempty"`
	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y,omitempty"`
}

// PreviewData is the free sample shown before purchase.
type PreviewData struct {
	Headers   []string            `json:"headers"`
	Rows      []map[string]string `json:"rows"`
	ChartType ChartType           `json:"chart_type,omitempty"`
	ChartData []ChartPoint        `json:"chart_data,omitempty"`
}

// Listing is a single negative-result dataset offered on the marketplace.
type Listing struct {
	ID               string             `json:"id"`
	Title            string             `json:"title"`
	Category         Category           `json:"category"`
	TargetClass      string             `json:"target_class"`
	FailureStage     FailureStage       `json:"failure_stage"`
	Methodology      string             `json:"methodology"`
	ExperimentDate   string             `json:"experiment_date"`
	UploadDate       string             `json:"upload_date"`
	SampleSize       int                `json:"sample_size"`
	Price            int64              `json:"price"`
	Currency         string             `json:"currency"`
	SellerReputation float64            `json:"seller_reputation"`
	Verification     VerificationStatus `json:"verification_status"`
	ConfidenceScore  float64            `json:"confidence_score"`
	Tags             []string           `json:"tags"`
	Anonymization    AnonymizationLevel `json:"anonymization_level"`
	Summary          string             `json:"summary"`
	DataFormats      []string           `json:"data_formats"`
	FileSize         string             `json:"file_size"`
	Downloads        int64              `json:"downloads"`
	Featured         bool               `json:"featured"`
	Preview          PreviewData        `json:"preview"`
}

// Validate reports a listing whose price or confidence is out of range.
func (l Listing) Validate() error {
	if l.Price < 0 {
		return fmt.Errorf("listing %s: negative price %d", l.ID, l.Price)
	}
	if l.ConfidenceScore < 0 || l.ConfidenceScore > 1 {
		return fmt.Errorf("listing %s: confidence %.2f outside [0,1]", l.ID, l.ConfidenceScore)
	}
	return nil
}

// Clone returns a copy that shares no slices or maps with l.
func (l Listing) Clone() Listing {
	out := l
	out.Tags = cloneStrings(l.Tags)
	out.DataFormats = cloneStrings(l.DataFormats)
	out.Preview.Headers = cloneStrings(l.Preview.Headers)
	if l.Preview.ChartData != nil {
		out.Preview.ChartData = append(make([]ChartPoint, 0, len(l.Preview.ChartData)), l.Preview.ChartData...)
	}
	if l.Preview.Rows != nil {
		out.Preview.Rows = make([]map[string]string, len(l.Preview.Rows))
		for i, row := range l.Preview.Rows {
			cp := make(map[string]string, len(row))
			for k, v := range row {
				cp[k] = v
			}
			out.Preview.Rows[i] = cp
		}
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}

// Query carries the marketplace search controls.
type Query struct {
	Text         string       `json:"q"`
	Category     Category     `json:"category"`
	Stage        FailureStage `json:"stage"`
	PriceCeiling int64        `json:"max_price"`
}

// NewQuery returns a query that matches every listing priced at or below ceiling.
func NewQuery(ceiling int64) Query {
	return Query{Category: CategoryAll, Stage: StageAll, PriceCeiling: ceiling}
}
