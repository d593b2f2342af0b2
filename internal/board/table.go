package board

import "shopflow/internal/stages"

// Stage is a board column code.
type Stage string

const (
	Intake     Stage = "intake"
	Estimate   Stage = "estimate"
	Parts      Stage = "parts"
	Body       Stage = "body"
	Paint      Stage = "paint"
	Reassembly Stage = "reassembly"
	Quality    Stage = "quality"
	Complete   Stage = "complete"
)

// Column is one board column and the detailed stages it groups.
type Column struct {
	Code     Stage
	Name     string
	Detailed []stages.Code
}

// DefaultTable groups the default catalogue into eight columns. Columns are
// listed left to right.
func DefaultTable() []Column {
	return []Column{
		{Code: Intake, Name: "Intake", Detailed: []stages.Code{stages.Intake}},
		{Code: Estimate, Name: "Estimate", Detailed: []stages.Code{stages.Estimate, stages.InsuranceApproval}},
		{Code: Parts, Name: "Parts", Detailed: []stages.Code{stages.PartsOrdered, stages.PartsReceived}},
		{Code: Body, Name: "Body Work", Detailed: []stages.Code{stages.Disassembly, stages.BodyRepair, stages.FrameStraightening}},
		{Code: Paint, Name: "Paint", Detailed: []stages.Code{stages.PaintPrep, stages.PaintBooth}},
		{Code: Reassembly, Name: "Reassembly", Detailed: []stages.Code{stages.Reassembly, stages.Detailing}},
		{Code: Quality, Name: "Quality Check", Detailed: []stages.Code{stages.QualityCheck}},
		{Code: Complete, Name: "Complete", Detailed: []stages.Code{stages.ReadyForPickup, stages.Delivered}},
	}
}

// TableFor returns DefaultTable when it fits reg, and otherwise one column
// per registered stage in rank order.
func TableFor(reg *stages.Registry) []Column {
	if _, err := NewProjector(DefaultTable(), reg); err == nil {
		return DefaultTable()
	}
	defs := reg.Ordered()
	table := make([]Column, len(defs))
	for i, def := range defs {
		table[i] = Column{Code: Stage(def.Code), Name: def.DisplayName(), Detailed: []stages.Code{def.Code}}
	}
	return table
}
