package studio

import (
	"fmt"

	"google.golang.org/genai"
)

// GenerationRequest is the instruction followed by product images and, last,
// the target swatch.
type GenerationRequest struct {
	Instruction Instruction
	Images      []NormalizedImage
}

// AssembleRequest orders the parts as [instruction, products..., target].
// At least one product and exactly one non-empty target are required.
func AssembleRequest(instr Instruction, products []NormalizedImage, target *NormalizedImage) (*GenerationRequest, error) {
	if len(products) == 0 {
		return nil, fmt.Errorf("%w: at least one product image is required", ErrValidation)
	}
	if target == nil || target.Empty() {
		return nil, fmt.Errorf("%w: a target color swatch is required", ErrValidation)
	}
	for i, p := range products {
		if p.Empty() {
			return nil, fmt.Errorf("%w: product image %d is empty", ErrValidation, i+1)
		}
	}

	images := make([]NormalizedImage, 0, len(products)+1)
	images = append(images, products...)
	images = append(images, *target)

	return &GenerationRequest{Instruction: instr, Images: images}, nil
}

// Parts renders the request as genai parts, text first.
func (r *GenerationRequest) Parts() []*genai.Part {
	parts := make([]*genai.Part, 0, len(r.Images)+1)
	parts = append(parts, genai.NewPartFromText(r.Instruction.Text()))
	for _, img := range r.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Bytes(), NormalizedMimeType))
	}
	return parts
}

// Contents wraps the parts into a single user turn.
func (r *GenerationRequest) Contents() []*genai.Content {
	return []*genai.Content{genai.NewContentFromParts(r.Parts(), genai.RoleUser)}
}
