package studio

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"google.golang.org/genai"

	"skagen-studio-server/modules/common/config"
	"skagen-studio-server/modules/events"
)

// scriptedGenerator replays errs in order, then returns resp.
type scriptedGenerator struct {
	mu       sync.Mutex
	errs     []error
	resp     *genai.GenerateContentResponse
	calls    int
	models   []string
	contents [][]*genai.Content
}

func (f *scriptedGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	f.calls++
	f.models = append(f.models, model)
	f.contents = append(f.contents, contents)
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &genai.GenerateContentResponse{}, nil
}

func (f *scriptedGenerator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func imageReply(data []byte) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				genai.NewPartFromText("here you go"),
				genai.NewPartFromBytes(data, "image/png"),
			}},
		}},
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		GoogleCloudProject: "studio-test",
		ModelPreset:        config.ModelPresetPro,
		MaxImageWidth:      3000,
		MaxImageHeight:     3000,
		JPEGQuality:        95,
		MaxRetries:         3,
		BackoffStep:        0,
		ResultsDir:         t.TempDir(),
		ThumbnailWidth:     300,
	}
}

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
