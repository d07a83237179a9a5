package studio

import (
	"fmt"

	"skagen-studio-server/modules/common/utils"
)

// ImageAsset - 업로드/파일에서 읽은 원본 이미지
type ImageAsset struct {
	Name     string `json:"name"`
	Data     []byte `json:"data"`
	MimeType string `json:"mime_type"`
}

// NewImageAsset sniffs the MIME type of data.
func NewImageAsset(name string, data []byte) ImageAsset {
	return ImageAsset{Name: name, Data: data, MimeType: utils.DetectMimeType(data)}
}

// NormalizedImage is a JPEG produced by the normalizer. It is not modified
// after creation.
type NormalizedImage struct {
	data []byte
}

// MimeType of every normalized image.
const NormalizedMimeType = "image/jpeg"

// Normalize runs the image normalizer over an asset.
func Normalize(asset ImageAsset, opts utils.NormalizeOptions) (NormalizedImage, error) {
	data, err := utils.NormalizeImage(asset.Data, opts)
	if err != nil {
		return NormalizedImage{}, fmt.Errorf("%s: %w", asset.Name, err)
	}
	return NormalizedImage{data: data}, nil
}

// Bytes returns the encoded JPEG.
func (n NormalizedImage) Bytes() []byte {
	return n.data
}

// Empty reports whether the image carries no data.
func (n NormalizedImage) Empty() bool {
	return len(n.data) == 0
}

// GenerateInput - 한 번의 생성 요청에 필요한 모든 입력
type GenerateInput struct {
	JobID string `json:"job_id,omitempty"`

	Products []ImageAsset `json:"products"`
	Target   *ImageAsset  `json:"target"`

	// CurrentColor and HumanRefs are accepted but never sent to the model.
	CurrentColor *ImageAsset  `json:"current_color,omitempty"`
	HumanRefs    []ImageAsset `json:"human_refs,omitempty"`
	InteriorRefs []ImageAsset `json:"interior_refs,omitempty"`

	InteriorPreset InteriorPreset `json:"interior_preset,omitempty"`
	Prompt         string         `json:"prompt,omitempty"`

	// ModelPreset selects "pro" or "flash"; empty uses the configured default.
	ModelPreset string `json:"model,omitempty"`
	// BaseName of the stored artifact; empty means "result".
	BaseName string `json:"base_name,omitempty"`
}

// GenerationResult reports either a stored image or an error description,
// always with the model that was used.
type GenerationResult struct {
	Success   bool   `json:"success"`
	ModelUsed string `json:"model_used"`
	Path      string `json:"path,omitempty"`
	Error     string `json:"error,omitempty"`
	Image     []byte `json:"-"`
}
