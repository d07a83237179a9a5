package studio

import (
	"fmt"
	"strings"
)

// InteriorPreset - 인테리어 스타일 preset
type InteriorPreset string

// PresetNone means no interior preset was chosen.
const PresetNone InteriorPreset = "none"

// InteriorPresets lists the selectable interior styles in display order.
var InteriorPresets = []InteriorPreset{
	"New York penthouse",
	"Norwegian timber “hytte”",
	"Scandinavian minimalism",
	"High-end hotel luxury",
	"Dark moody loft",
	"Modern Minimal / Scandinavian landscape",
}

// ParseInteriorPreset accepts "", "none", "-- none --" or one of
// InteriorPresets.
func ParseInteriorPreset(s string) (InteriorPreset, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "none", "-- none --":
		return PresetNone, nil
	}
	for _, p := range InteriorPresets {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: unknown interior preset %q", ErrValidation, s)
}

// baseDirective is always the start of an instruction.
const baseDirective = "Place the chair from all provided product images into an interior. " +
	"Use all angles to preserve correct geometry, stitching, arms, legs and proportions. " +
	"Replace upholstery with the TARGET color. " +
	"No changes to silhouette or construction. " +
	"Chair must look realistically placed with correct scale, natural shadows and lighting. " +
	"Render with high clarity, sharp edges, detailed textures, professional product photography lighting. " +
	"Avoid blur, softness, artifacts, or painterly effects. " +
	"Clean, crisp, high-detail output."

const interiorReferenceClause = "Target interior is added as interior reference image."

// PromptOptions - 프롬프트 조합 옵션
type PromptOptions struct {
	HasInteriorReferences bool
	InteriorPreset        InteriorPreset
	Addendum              string
}

// Instruction is the base directive followed by the clauses that apply.
type Instruction struct {
	Clauses []string
}

// Text joins the clauses with single spaces.
func (i Instruction) Text() string {
	return strings.Join(i.Clauses, " ")
}

// ComposeInstruction builds the instruction text. Clause order is fixed:
// interior reference, interior preset, free-text addendum.
func ComposeInstruction(opts PromptOptions) Instruction {
	clauses := []string{baseDirective}

	if opts.HasInteriorReferences {
		clauses = append(clauses, interiorReferenceClause)
	}

	if opts.InteriorPreset != "" && opts.InteriorPreset != PresetNone {
		clauses = append(clauses, fmt.Sprintf("%s is a target interior.", opts.InteriorPreset))
	}

	if opts.Addendum != "" {
		clauses = append(clauses, opts.Addendum)
	}

	return Instruction{Clauses: clauses}
}
