package seed

import (
	"fmt"
	"strconv"

	"github.com/celerix-dev/negmarket/pkg/schema"
)

// preview builds category-shaped sample rows and chart points.
func (g *Generator) preview(category schema.Category) schema.PreviewData {
	switch category {
	case schema.CategoryAntiviral, schema.CategoryOncology, schema.CategoryAntibody:
		return g.compoundPreview()
	case schema.CategoryBattery, schema.CategoryMaterials:
		return g.cyclingPreview()
	case schema.CategoryCRISPR:
		return g.editingPreview()
	default:
		return g.genericPreview()
	}
}

func (g *Generator) compoundPreview() schema.PreviewData {
	p := schema.PreviewData{
		Headers:   []string{"Compound ID", "Mol. Weight", "IC50 (µM)", "Cell Toxicity (%)", "Binding Affinity (Kd)", "Result"},
		ChartType: schema.ChartScatter,
	}
	for i := 0; i < 5; i++ {
		p.Rows = append(p.Rows, map[string]string{
			"Compound ID":           fmt.Sprintf("CPD-%d", g.rand.Intn(9000)+1000),
			"Mol. Weight":           fixed(g.rand.Float64()*300+200, 1),
			"IC50 (µM)":             fixed(g.rand.Float64()*50+5, 2),
			"Cell Toxicity (%)":     fixed(g.rand.Float64()*20, 1),
			"Binding Affinity (Kd)": fmt.Sprintf("%.0f nM", g.rand.Float64()*100+10),
			"Result":                "No Effect",
		})
	}
	// IC50 against toxicity
	for i := 0; i < 20; i++ {
		p.ChartData = append(p.ChartData, schema.ChartPoint{
			X: round(g.rand.Float64()*50, 1),
			Y: round(g.rand.Float64()*20, 1),
		})
	}
	return p
}

func (g *Generator) cyclingPreview() schema.PreviewData {
	p := schema.PreviewData{
		Headers:   []string{"Cycle Number", "Specific Capacity (mAh/g)", "Voltage (V)", "Coulombic Efficiency", "Temp (°C)"},
		ChartType: schema.ChartLine,
	}
	for i := 0; i < 5; i++ {
		p.Rows = append(p.Rows, map[string]string{
			"Cycle Number":              strconv.Itoa((i + 1) * 50),
			"Specific Capacity (mAh/g)": fixed(200-float64(i)*15, 1),
			"Voltage (V)":               fixed(4.2-float64(i)*0.1, 2),
			"Coulombic Efficiency":      fixed(99.5-float64(i)*0.2, 2) + "%",
			"Temp (°C)":                 fixed(25+g.rand.Float64()*5, 1),
		})
	}
	capacity := 200.0
	for i := 0; i < 20; i++ {
		capacity -= g.rand.Float64() * 2
		p.ChartData = append(p.ChartData, schema.ChartPoint{
			Name:  strconv.Itoa((i + 1) * 10),
			Value: round(capacity, 1),
		})
	}
	return p
}

func (g *Generator) editingPreview() schema.PreviewData {
	p := schema.PreviewData{
		Headers:   []string{"Target Locus", "gRNA Sequence", "On-Target Indel %", "Off-Target Sites", "Frameshift %", "Outcome"},
		ChartType: schema.ChartBar,
	}
	const bases = "ATCG"
	for i := 0; i < 5; i++ {
		indel := round(g.rand.Float64()*80, 1)
		locus := fmt.Sprintf("Exon %d", g.rand.Intn(10)+1)

		grna := make([]byte, 10)
		for j := range grna {
			grna[j] = bases[g.rand.Intn(len(bases))]
		}

		p.Rows = append(p.Rows, map[string]string{
			"Target Locus":      locus,
			"gRNA Sequence":     "G" + string(grna) + "...",
			"On-Target Indel %": fixed(indel, 1),
			"Off-Target Sites":  strconv.Itoa(g.rand.Intn(15)),
			"Frameshift %":      fixed(g.rand.Float64()*60, 1),
			"Outcome":           "High Off-target",
		})
		p.ChartData = append(p.ChartData, schema.ChartPoint{Name: locus, Value: indel})
	}
	return p
}

func (g *Generator) genericPreview() schema.PreviewData {
	p := schema.PreviewData{
		Headers:   []string{"Sample ID", "Parameter A", "Parameter B", "Timestamp", "Status"},
		ChartType: schema.ChartBar,
		ChartData: []schema.ChartPoint{
			{Name: "Group A", Value: 40},
			{Name: "Group B", Value: 30},
			{Name: "Group C", Value: 20},
			{Name: "Group D", Value: 50},
		},
	}
	for i := 0; i < 5; i++ {
		p.Rows = append(p.Rows, map[string]string{
			"Sample ID":   fmt.Sprintf("SMP-%d", g.rand.Intn(1000)),
			"Parameter A": fixed(g.rand.Float64(), 4),
			"Parameter B": fixed(g.rand.Float64(), 4),
			"Timestamp":   g.now.Format("2006-01-02"),
			"Status":      "Inconclusive",
		})
	}
	return p
}

func fixed(v float64, places int) string {
	return strconv.FormatFloat(v, 'f', places, 64)
}
