package comfy

import "encoding/json"

// promptRequest is the body of POST /prompt.
type promptRequest struct {
	Prompt   Graph  `json:"prompt"`
	ClientID string `json:"client_id,omitempty"`
}

// PromptResponse is the backend's answer to a job submission.
type PromptResponse struct {
	PromptID   string                     `json:"prompt_id"`
	Number     int                        `json:"number"`
	NodeErrors map[string]json.RawMessage `json:"node_errors"`
}

// Artifact references one file produced by a node.
type Artifact struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// NodeOutput lists what a node produced.
type NodeOutput struct {
	Images []Artifact `json:"images"`
}

// HistoryStatus is the execution summary attached to a history record.
type HistoryStatus struct {
	StatusStr string            `json:"status_str"`
	Completed bool              `json:"completed"`
	Messages  []json.RawMessage `json:"messages"`
}

// HistoryRecord is the backend-side record of one job.
type HistoryRecord struct {
	Outputs map[string]NodeOutput `json:"outputs"`
	Status  HistoryStatus         `json:"status"`
}

// History maps job ids to their records, as returned by GET /history/{id}.
type History map[string]HistoryRecord

// FirstImage returns the first image of node for job id, if the record and
// the image list are both present.
func (h History) FirstImage(id, node string) (Artifact, bool) {
	record, ok := h[id]
	if !ok {
		return Artifact{}, false
	}
	out, ok := record.Outputs[node]
	if !ok || len(out.Images) == 0 {
		return Artifact{}, false
	}
	return out.Images[0], true
}
