package studio

import (
	"strings"
	"testing"

	. "github.com/onsi/gomega"
)

func TestComposeInstructionBaseOnly(t *testing.T) {
	g := NewWithT(t)

	instr := ComposeInstruction(PromptOptions{})
	g.Expect(instr.Clauses).To(HaveLen(1))
	g.Expect(instr.Text()).To(Equal(baseDirective))
	g.Expect(instr.Text()).To(HaveSuffix("Clean, crisp, high-detail output."))
}

func TestComposeInstructionClauseOrder(t *testing.T) {
	g := NewWithT(t)

	instr := ComposeInstruction(PromptOptions{
		HasInteriorReferences: true,
		InteriorPreset:        "Dark moody loft",
		Addendum:              "Warm evening light.",
	})

	g.Expect(instr.Clauses).To(Equal([]string{
		baseDirective,
		interiorReferenceClause,
		"Dark moody loft is a target interior.",
		"Warm evening light.",
	}))
	g.Expect(instr.Text()).To(HavePrefix(baseDirective + " "))
}

func TestComposeInstructionSkipsNoneAndEmpty(t *testing.T) {
	g := NewWithT(t)

	instr := ComposeInstruction(PromptOptions{InteriorPreset: PresetNone})
	g.Expect(instr.Text()).To(Equal(baseDirective))
}

func TestComposeInstructionKeepsWhitespaceAddendum(t *testing.T) {
	g := NewWithT(t)

	instr := ComposeInstruction(PromptOptions{Addendum: "   "})
	g.Expect(instr.Clauses).To(Equal([]string{baseDirective, "   "}))
	g.Expect(instr.Text()).To(Equal(baseDirective + "    "))
}

func TestComposeInstructionKeepsAddendumVerbatim(t *testing.T) {
	g := NewWithT(t)

	addendum := "  Keep the oak floor.  "
	instr := ComposeInstruction(PromptOptions{Addendum: addendum})
	g.Expect(instr.Clauses[len(instr.Clauses)-1]).To(Equal(addendum))
	g.Expect(strings.Count(instr.Text(), baseDirective)).To(Equal(1))
}

func TestParseInteriorPreset(t *testing.T) {
	tests := []struct {
		in      string
		want    InteriorPreset
		wantErr bool
	}{
		{in: "", want: PresetNone},
		{in: "none", want: PresetNone},
		{in: "-- None --", want: PresetNone},
		{in: "Scandinavian minimalism", want: "Scandinavian minimalism"},
		{in: " New York penthouse ", want: "New York penthouse"},
		{in: "Beach shack", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			g := NewWithT(t)
			got, err := ParseInteriorPreset(tt.in)
			if tt.wantErr {
				g.Expect(err).To(MatchError(ErrValidation))
				return
			}
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(got).To(Equal(tt.want))
		})
	}
}
