package board

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"shopflow/internal/stages"
)

// ErrUnknownBoardStage reports a board code missing from the table.
var ErrUnknownBoardStage = errors.New("unknown board stage")

// Projector translates between detailed and board stages.
type Projector struct {
	columns    []Column
	byBoard    map[Stage]int
	byDetailed map[stages.Code]Stage
	canonical  map[Stage]stages.Code
}

// NewProjector validates table against reg. Every detailed code must exist
// in the registry and belong to at most one column.
func NewProjector(table []Column, reg *stages.Registry) (*Projector, error) {
	if len(table) == 0 {
		return nil, errors.New("board table is empty")
	}
	p := &Projector{
		byBoard:    make(map[Stage]int, len(table)),
		byDetailed: make(map[stages.Code]Stage),
		canonical:  make(map[Stage]stages.Code, len(table)),
	}
	for i, col := range table {
		code := Stage(strings.TrimSpace(string(col.Code)))
		if code == "" {
			return nil, fmt.Errorf("board column %d has no code", i)
		}
		if _, dup := p.byBoard[code]; dup {
			return nil, fmt.Errorf("duplicate board column %q", code)
		}
		if len(col.Detailed) == 0 {
			return nil, fmt.Errorf("board column %q maps no stages", code)
		}
		detailed := append([]stages.Code(nil), col.Detailed...)
		for _, d := range detailed {
			if !reg.Has(d) {
				return nil, fmt.Errorf("board column %q: %w: %s", code, stages.ErrUnknownStage, d)
			}
			if owner, taken := p.byDetailed[d]; taken {
				return nil, fmt.Errorf("stage %q mapped to both %q and %q", d, owner, code)
			}
			p.byDetailed[d] = code
		}
		sort.SliceStable(detailed, func(a, b int) bool {
			ra, _ := reg.RankOf(detailed[a])
			rb, _ := reg.RankOf(detailed[b])
			return ra < rb
		})
		p.canonical[code] = detailed[0]
		p.byBoard[code] = len(p.columns)
		p.columns = append(p.columns, Column{Code: code, Name: col.Name, Detailed: detailed})
	}
	return p, nil
}

// MustNewProjector panics on an invalid table.
func MustNewProjector(table []Column, reg *stages.Registry) *Projector {
	p, err := NewProjector(table, reg)
	if err != nil {
		panic(err)
	}
	return p
}

// ToBoardStage maps a detailed code to its column, or the first column when
// the code is unmapped.
func (p *Projector) ToBoardStage(code stages.Code) Stage {
	if board, ok := p.byDetailed[code]; ok {
		return board
	}
	return p.columns[0].Code
}

// ToDetailedStages returns the detailed stages of a column in rank order.
func (p *Projector) ToDetailedStages(board Stage) ([]stages.Code, error) {
	idx, ok := p.byBoard[board]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBoardStage, board)
	}
	return append([]stages.Code(nil), p.columns[idx].Detailed...), nil
}

// Canonical returns the detailed stage a card dropped on board lands in.
func (p *Projector) Canonical(board Stage) (stages.Code, error) {
	code, ok := p.canonical[board]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownBoardStage, board)
	}
	return code, nil
}

// Columns returns the table in display order.
func (p *Projector) Columns() []Column {
	out := make([]Column, len(p.columns))
	for i, col := range p.columns {
		col.Detailed = append([]stages.Code(nil), col.Detailed...)
		out[i] = col
	}
	return out
}

// ParseStage normalizes a board code.
func (p *Projector) ParseStage(raw string) (Stage, error) {
	code := Stage(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := p.byBoard[code]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownBoardStage, raw)
	}
	return code, nil
}
