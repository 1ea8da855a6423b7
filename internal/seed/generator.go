// Package seed synthesises the catalog and the demo account a session
// starts with.
package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/celerix-dev/negmarket/pkg/engine"
	"github.com/celerix-dev/negmarket/pkg/schema"
)

// Config controls generation.
type Config struct {
	// CatalogSize is the number of listings including the featured anchor.
	CatalogSize int
	// StartingCredits is the demo account's balance.
	StartingCredits int64
	// Seed makes generation reproducible. Zero picks a time-based seed.
	Seed int64
}

// DefaultConfig mirrors the stock marketplace: thirty listings and a demo
// account holding 25000 credits.
func DefaultConfig() Config {
	return Config{CatalogSize: 30, StartingCredits: 25000}
}

// Generator produces seed data. It implements engine.Source.
type Generator struct {
	cfg  Config
	rand *rand.Rand
	now  time.Time
}

// New returns a configured Generator instance.
func New(cfg Config) *Generator {
	if cfg.CatalogSize <= 0 {
		cfg.CatalogSize = DefaultConfig().CatalogSize
	}
	if cfg.StartingCredits < 0 {
		cfg.StartingCredits = 0
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return &Generator{
		cfg:  cfg,
		rand: rand.New(rand.NewSource(cfg.Seed)),
		now:  time.Now().UTC(),
	}
}

var _ engine.Source = (*Generator)(nil)

// seedCategories excludes Other; generated listings always name a field.
var seedCategories = []schema.Category{
	schema.CategoryAntiviral,
	schema.CategoryAntibody,
	schema.CategoryCRISPR,
	schema.CategoryBattery,
	schema.CategoryOncology,
	schema.CategoryMaterials,
}

// Catalog returns the anchor listing exp_001 followed by generated ones.
func (g *Generator) Catalog() ([]schema.Listing, error) {
	listings := make([]schema.Listing, 0, g.cfg.CatalogSize)
	listings = append(listings, g.anchor())

	for i := 2; i <= g.cfg.CatalogSize; i++ {
		category := seedCategories[g.rand.Intn(len(seedCategories))]
		stage := schema.Stages[g.rand.Intn(len(schema.Stages))]

		verification := schema.VerificationNone
		if g.rand.Float64() > 0.5 {
			verification = schema.VerificationAI
		}

		listings = append(listings, schema.Listing{
			ID:               fmt.Sprintf("exp_%03d", i),
			Title:            fmt.Sprintf("%s Phase %d Negative Results", strings.Fields(string(category))[0], g.rand.Intn(3)+1),
			Category:         category,
			TargetClass:      "Various",
			FailureStage:     stage,
			Methodology:      "High Throughput Screening",
			ExperimentDate:   "2023-01-10",
			UploadDate:       "2023-10-05",
			SampleSize:       g.rand.Intn(500) + 50,
			Price:            int64(g.rand.Intn(20000) + 2000),
			Currency:         "USD",
			SellerReputation: round(g.rand.Float64()*2+3, 1),
			Verification:     verification,
			ConfidenceScore:  round(g.rand.Float64()*0.3+0.7, 2),
			Tags:             []string{"negative_data", "failed_trial", "raw_data"},
			Anonymization:    schema.AnonymizationHigh,
			Summary: fmt.Sprintf("Comprehensive dataset containing negative findings for %s research. "+
				"Includes raw data points and statistical analysis showing lack of efficacy or toxicity issues.", category),
			DataFormats: []string{"CSV", "PDF"},
			FileSize:    fmt.Sprintf("%d MB", g.rand.Intn(100)+10),
			Downloads:   int64(g.rand.Intn(50)),
			Featured:    g.rand.Float64() > 0.9,
			Preview:     g.preview(category),
		})
	}
	return listings, nil
}

func (g *Generator) anchor() schema.Listing {
	return schema.Listing{
		ID:               "exp_001",
		Title:            "SARS-CoV-2 Mpro Inhibitor Screening Failure",
		Category:         schema.CategoryAntiviral,
		TargetClass:      "Protease",
		FailureStage:     schema.StageLeadOptimization,
		Methodology:      "Fluorescence-based Assay",
		ExperimentDate:   "2023-08-15",
		UploadDate:       "2023-09-20",
		SampleSize:       247,
		Price:            15000,
		Currency:         "USD",
		SellerReputation: 4.8,
		Verification:     schema.VerificationPeer,
		ConfidenceScore:  0.89,
		Tags:             []string{"COVID-19", "protease_inhibitor", "in_vitro"},
		Anonymization:    schema.AnonymizationHigh,
		Summary: "Screened 247 small molecules against SARS-CoV-2 main protease. All compounds showed IC50 > 50µM. " +
			"Detailed structure-activity relationship data included. Ideal for training ML negative selection models.",
		DataFormats: []string{"CSV", "SDF", "PDF"},
		FileSize:    "45 MB",
		Downloads:   12,
		Featured:    true,
		Preview:     g.preview(schema.CategoryAntiviral),
	}
}

// Accounts returns the demo account with one historic purchase.
func (g *Generator) Accounts() ([]schema.Account, error) {
	return []schema.Account{DemoAccount(g.cfg.StartingCredits)}, nil
}

// DemoAccount is the account every session starts with.
func DemoAccount(credits int64) schema.Account {
	return schema.Account{
		ID:       engine.DefaultAccount,
		Name:     "Dr. Demo Researcher",
		UserType: schema.UserAcademic,
		Tier:     schema.TierStartup,
		Credits:  credits,
		PurchaseHistory: []schema.PurchaseRecord{
			{ListingID: "exp_003", Title: "Antibody Affinity Maturation Fail", Date: "2023-11-20", Price: 8000},
		},
		Uploads: []schema.Listing{},
	}
}

func round(v float64, places int) float64 {
	p := 1.0
	for i := 0; i < places; i++ {
		p *= 10
	}
	return float64(int64(v*p+0.5)) / p
}
