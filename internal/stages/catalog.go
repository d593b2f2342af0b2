package stages

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Stage codes of the built-in collision-repair catalogue.
const (
	Intake             Code = "intake"
	Estimate           Code = "estimate"
	InsuranceApproval  Code = "insurance_approval"
	PartsOrdered       Code = "parts_ordered"
	PartsReceived      Code = "parts_received"
	Disassembly        Code = "disassembly"
	BodyRepair         Code = "body_repair"
	FrameStraightening Code = "frame_straightening"
	PaintPrep          Code = "paint_prep"
	PaintBooth         Code = "paint_booth"
	Reassembly         Code = "reassembly"
	Detailing          Code = "detailing"
	QualityCheck       Code = "quality_check"
	ReadyForPickup     Code = "ready_for_pickup"
	Delivered          Code = "delivered"
)

// DefaultCatalog returns the built-in stage graph used when no catalogue file
// is configured.
func DefaultCatalog() []Definition {
	return []Definition{
		{
			Code: Intake, Name: "Vehicle Intake", Rank: 1,
			AllowedNext:  []Code{Estimate},
			Requirements: NewRequirementSet(RequirementPhotosTaken, RequirementCustomerAuthorized),
			TimeLimit:    2 * time.Hour, Capacity: 8,
		},
		{
			Code: Estimate, Name: "Estimate", Rank: 2,
			AllowedNext:  []Code{InsuranceApproval, PartsOrdered},
			Requirements: NewRequirementSet(RequirementEstimateWritten),
			TimeLimit:    24 * time.Hour, Capacity: 6,
		},
		{
			Code: InsuranceApproval, Name: "Insurance Approval", Rank: 3,
			AllowedNext:  []Code{PartsOrdered},
			Requirements: NewRequirementSet(RequirementInsuranceApproved),
			TimeLimit:    72 * time.Hour, Capacity: 20, CanSkip: true,
		},
		{
			Code: PartsOrdered, Name: "Parts Ordered", Rank: 4,
			AllowedNext:  []Code{PartsReceived},
			Requirements: NewRequirementSet(RequirementPartsOrdered),
			TimeLimit:    120 * time.Hour, Capacity: 25,
		},
		{
			Code: PartsReceived, Name: "Parts Received", Rank: 5,
			AllowedNext:  []Code{Disassembly},
			Requirements: NewRequirementSet(RequirementPartsVerified),
			TimeLimit:    24 * time.Hour, Capacity: 10,
		},
		{
			Code: Disassembly, Name: "Disassembly", Rank: 6,
			AllowedNext:  []Code{BodyRepair},
			Requirements: NewRequirementSet(RequirementDamageDocumented),
			TimeLimit:    8 * time.Hour, Capacity: 4,
		},
		{
			Code: BodyRepair, Name: "Body Repair", Rank: 7,
			AllowedNext: []Code{FrameStraightening, PaintPrep},
			TimeLimit:   24 * time.Hour, Capacity: 5,
		},
		{
			Code: FrameStraightening, Name: "Frame Straightening", Rank: 8,
			AllowedNext:  []Code{PaintPrep},
			Requirements: NewRequirementSet(RequirementFrameMeasured),
			TimeLimit:    16 * time.Hour, Capacity: 2, CanSkip: true,
		},
		{
			Code: PaintPrep, Name: "Paint Prep", Rank: 9,
			AllowedNext:  []Code{PaintBooth},
			Requirements: NewRequirementSet(RequirementPaintMatched),
			TimeLimit:    8 * time.Hour, Capacity: 4,
		},
		{
			Code: PaintBooth, Name: "Paint Booth", Rank: 10,
			AllowedNext: []Code{Reassembly},
			TimeLimit:   6 * time.Hour, Capacity: 2,
		},
		{
			Code: Reassembly, Name: "Reassembly", Rank: 11,
			AllowedNext: []Code{Detailing},
			TimeLimit:   12 * time.Hour, Capacity: 4,
		},
		{
			Code: Detailing, Name: "Detailing", Rank: 12,
			AllowedNext: []Code{QualityCheck},
			TimeLimit:   4 * time.Hour, Capacity: 3, CanSkip: true,
		},
		{
			Code: QualityCheck, Name: "Quality Check", Rank: 13,
			AllowedNext:  []Code{ReadyForPickup},
			Requirements: NewRequirementSet(RequirementQualityPassed),
			TimeLimit:    2 * time.Hour, Capacity: 3,
		},
		{
			Code: ReadyForPickup, Name: "Ready for Pickup", Rank: 14,
			AllowedNext:  []Code{Delivered},
			Requirements: NewRequirementSet(RequirementPaymentReceived),
			TimeLimit:    72 * time.Hour, Capacity: 15,
		},
		{
			Code: Delivered, Name: "Delivered", Rank: 15,
		},
	}
}

// DefaultRegistry builds a registry from DefaultCatalog.
func DefaultRegistry() *Registry {
	return MustNewRegistry(DefaultCatalog())
}

// LoadRegistry builds the registry from the catalogue at path, or from
// DefaultCatalog when path is empty.
func LoadRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return NewRegistry(DefaultCatalog())
	}
	defs, err := LoadCatalog(path)
	if err != nil {
		return nil, err
	}
	reg, err := NewRegistry(defs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

type catalogFile struct {
	Stages []catalogStage `toml:"stage"`
}

type catalogStage struct {
	Code             string   `toml:"code"`
	Name             string   `toml:"name"`
	Rank             int      `toml:"rank"`
	AllowedNext      []string `toml:"allowed_next"`
	Requirements     []string `toml:"requirements"`
	TimeLimitMinutes int      `toml:"time_limit_minutes"`
	Capacity         int      `toml:"capacity"`
	CanSkip          bool     `toml:"can_skip"`
}

// LoadCatalog reads a TOML stage catalogue from path. The result still has
// to pass NewRegistry.
func LoadCatalog(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stage catalog: %w", err)
	}
	defs, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// ParseCatalog decodes a TOML catalogue made of [[stage]] tables.
func ParseCatalog(data []byte) ([]Definition, error) {
	var file catalogFile
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: parse: %w", ErrInvalidCatalog, err)
	}

	defs := make([]Definition, 0, len(file.Stages))
	for _, raw := range file.Stages {
		reqs, err := ParseRequirementSet(raw.Requirements)
		if err != nil {
			return nil, fmt.Errorf("%w: stage %q: %w", ErrInvalidCatalog, raw.Code, err)
		}
		if raw.TimeLimitMinutes < 0 {
			return nil, fmt.Errorf("%w: stage %q: time_limit_minutes must not be negative", ErrInvalidCatalog, raw.Code)
		}
		next := make([]Code, 0, len(raw.AllowedNext))
		for _, code := range raw.AllowedNext {
			next = append(next, Code(strings.TrimSpace(code)))
		}
		defs = append(defs, Definition{
			Code:         Code(strings.TrimSpace(raw.Code)),
			Name:         strings.TrimSpace(raw.Name),
			Rank:         raw.Rank,
			AllowedNext:  next,
			Requirements: reqs,
			TimeLimit:    time.Duration(raw.TimeLimitMinutes) * time.Minute,
			Capacity:     raw.Capacity,
			CanSkip:      raw.CanSkip,
		})
	}
	return defs, nil
}
