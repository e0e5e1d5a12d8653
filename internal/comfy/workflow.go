package comfy

import (
	"encoding/json"
	"fmt"
	"math/rand"
)

// Node ids of the SDXL Turbo graph. Links between nodes refer to these ids.
const (
	NodeLatent        = "5"
	NodePositive      = "6"
	NodeNegative      = "7"
	NodeDecode        = "8"
	NodeSampler       = "13"
	NodeSamplerSelect = "14"
	NodeCheckpoint    = "20"
	NodeScheduler     = "22"
	NodeSave          = "27"

	// OutputNode is the node whose history entry carries the rendered images.
	OutputNode = NodeSave
)

// MaxSeed bounds the noise seed: seeds are drawn uniformly from [0, MaxSeed).
const MaxSeed int64 = 1_000_000_000_000_000

// NewSeed draws a fresh noise seed. Collisions are possible and harmless.
func NewSeed() int64 {
	return rand.Int63n(MaxSeed)
}

// Link references output slot Output of node Node. It encodes as ["20", 1].
type Link struct {
	Node   string
	Output int
}

// MarshalJSON encodes the link in ComfyUI's two-element array form.
func (l Link) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{l.Node, l.Output})
}

// UnmarshalJSON decodes the two-element array form.
func (l *Link) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("comfy: link must have 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &l.Node); err != nil {
		return fmt.Errorf("comfy: link node: %w", err)
	}
	if err := json.Unmarshal(raw[1], &l.Output); err != nil {
		return fmt.Errorf("comfy: link output: %w", err)
	}
	return nil
}

// NodeMeta carries the display title shown in the ComfyUI editor.
type NodeMeta struct {
	Title string `json:"title"`
}

// Node is one processing step of a job graph.
type Node struct {
	Inputs    map[string]any `json:"inputs"`
	ClassType string         `json:"class_type"`
	Meta      NodeMeta       `json:"_meta"`
}

// Graph is a job description keyed by node id, ready to be posted to /prompt.
type Graph map[string]Node

// PromptText returns the positive conditioning text of the graph.
func (g Graph) PromptText() string {
	text, _ := g[NodePositive].Inputs["text"].(string)
	return text
}

// Seed returns the sampler noise seed of the graph.
func (g Graph) Seed() int64 {
	seed, _ := g[NodeSampler].Inputs["noise_seed"].(int64)
	return seed
}

// Template holds every fixed parameter of the SDXL Turbo graph. It is a plain
// value: Build never mutates it and each call returns an independent Graph, so
// only the prompt text and the seed differ between submissions.
type Template struct {
	Width          int
	Height         int
	BatchSize      int
	NegativePrompt string
	Checkpoint     string
	SamplerName    string
	Steps          int
	Denoise        float64
	CFG            float64
	AddNoise       bool
	FilenamePrefix string
}

// DefaultTemplate is the single-step 512x512 SDXL Turbo graph.
var DefaultTemplate = Template{
	Width:          512,
	Height:         512,
	BatchSize:      1,
	NegativePrompt: "text, watermark, low quality, blurry",
	Checkpoint:     "sd_xl_turbo_1.0_fp16.safetensors",
	SamplerName:    "euler_ancestral",
	Steps:          1,
	Denoise:        1,
	CFG:            1,
	AddNoise:       true,
	FilenamePrefix: "TurboGen",
}

// Build substitutes prompt into the positive conditioning node and seed into
// the sampler node.
func (t Template) Build(prompt string, seed int64) Graph {
	return Graph{
		NodeLatent: {
			Inputs:    map[string]any{"width": t.Width, "height": t.Height, "batch_size": t.BatchSize},
			ClassType: "EmptyLatentImage",
			Meta:      NodeMeta{Title: "Empty Latent Image"},
		},
		NodePositive: {
			Inputs:    map[string]any{"text": prompt, "clip": Link{NodeCheckpoint, 1}},
			ClassType: "CLIPTextEncode",
			Meta:      NodeMeta{Title: "CLIP Text Encode (Prompt)"},
		},
		NodeNegative: {
			Inputs:    map[string]any{"text": t.NegativePrompt, "clip": Link{NodeCheckpoint, 1}},
			ClassType: "CLIPTextEncode",
			Meta:      NodeMeta{Title: "CLIP Text Encode (Prompt)"},
		},
		NodeDecode: {
			Inputs:    map[string]any{"samples": Link{NodeSampler, 0}, "vae": Link{NodeCheckpoint, 2}},
			ClassType: "VAEDecode",
			Meta:      NodeMeta{Title: "VAE Decode"},
		},
		NodeSampler: {
			Inputs: map[string]any{
				"add_noise":    t.AddNoise,
				"noise_seed":   seed,
				"cfg":          t.CFG,
				"model":        Link{NodeCheckpoint, 0},
				"positive":     Link{NodePositive, 0},
				"negative":     Link{NodeNegative, 0},
				"sampler":      Link{NodeSamplerSelect, 0},
				"sigmas":       Link{NodeScheduler, 0},
				"latent_image": Link{NodeLatent, 0},
			},
			ClassType: "SamplerCustom",
			Meta:      NodeMeta{Title: "SamplerCustom"},
		},
		NodeSamplerSelect: {
			Inputs:    map[string]any{"sampler_name": t.SamplerName},
			ClassType: "KSamplerSelect",
			Meta:      NodeMeta{Title: "KSamplerSelect"},
		},
		NodeCheckpoint: {
			Inputs:    map[string]any{"ckpt_name": t.Checkpoint},
			ClassType: "CheckpointLoaderSimple",
			Meta:      NodeMeta{Title: "Load Checkpoint"},
		},
		NodeScheduler: {
			Inputs:    map[string]any{"steps": t.Steps, "denoise": t.Denoise, "model": Link{NodeCheckpoint, 0}},
			ClassType: "SDTurboScheduler",
			Meta:      NodeMeta{Title: "SDTurboScheduler"},
		},
		NodeSave: {
			Inputs:    map[string]any{"filename_prefix": t.FilenamePrefix, "images": Link{NodeDecode, 0}},
			ClassType: "SaveImage",
			Meta:      NodeMeta{Title: "Save Image"},
		},
	}
}
