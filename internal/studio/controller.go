package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"turbogen/internal/comfy"
	"turbogen/internal/infra"
)

// Status is the short progress code shown while a generation runs.
type Status string

const (
	StatusNone       Status = ""
	StatusConnecting Status = "connecting"
	StatusGenerating Status = "generating"
)

// Phase tracks where a controller is in the submit, poll, display sequence.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhasePolling    Phase = "polling"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

const (
	// FallbackError is shown when a failure carries no message of its own.
	FallbackError = "Generation failed. Check connection."
	// CanceledError is shown when the user or a teardown stops a run.
	CanceledError = "Generation canceled"
	// TimeoutError matches the backend client's message when polling gives up.
	TimeoutError = "Generation timed out"
)

// Backend is the rendering service the controller drives.
type Backend interface {
	Submit(ctx context.Context, prompt string) (string, error)
	ResolveImage(ctx context.Context, promptID string) (string, error)
	FetchImage(ctx context.Context, imageURL string) ([]byte, string, error)
}

// Saver persists downloaded files. storage.FileStore satisfies it.
type Saver interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// State is a snapshot of what the page shows.
type State struct {
	Prompt     string    `json:"prompt"`
	ImageURL   string    `json:"image_url,omitempty"`
	Generating bool      `json:"generating"`
	Status     Status    `json:"status,omitempty"`
	Error      string    `json:"error,omitempty"`
	Phase      Phase     `json:"phase"`
	JobID      string    `json:"job_id,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Options configures a Controller.
type Options struct {
	Logger *infra.Logger
	// Saver, when set, receives a copy of every downloaded image.
	Saver Saver
	Now   func() time.Time
}

// Controller owns the UI state of one page and sequences the
// submit, poll and display flow. The generating flag is the only guard
// against overlapping runs.
type Controller struct {
	backend Backend
	logger  *infra.Logger
	saver   Saver
	now     func() time.Time

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

// NewController wires a controller to backend.
func NewController(backend Backend, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		backend: backend,
		logger:  logger,
		saver:   opts.Saver,
		now:     now,
		state:   State{Phase: PhaseIdle, UpdatedAt: now()},
	}
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetPrompt replaces the prompt text. It is allowed while generating; the
// running job keeps the text it was started with.
func (c *Controller) SetPrompt(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Prompt = text
	c.state.UpdatedAt = c.now()
}

// Generate runs one generation and returns when it has finished. It returns
// false without touching the backend when a run is already in flight or the
// prompt is blank.
func (c *Controller) Generate(ctx context.Context) bool {
	runCtx, prompt, ok := c.begin(ctx)
	if !ok {
		return false
	}
	defer c.wg.Done()
	c.run(runCtx, prompt)
	return true
}

// Start is Generate without waiting: the run continues in the background,
// detached from ctx's cancellation but keeping its values.
func (c *Controller) Start(ctx context.Context) bool {
	runCtx, prompt, ok := c.begin(context.WithoutCancel(ctx))
	if !ok {
		return false
	}
	go func() {
		defer c.wg.Done()
		c.run(runCtx, prompt)
	}()
	return true
}

// HandleKey starts a generation for Enter pressed without Shift. Any other
// key, or Shift+Enter (a newline), is ignored.
func (c *Controller) HandleKey(ctx context.Context, key string, shift bool) bool {
	if key != "Enter" || shift {
		return false
	}
	return c.Start(ctx)
}

// Cancel stops the in-flight run, if any. Polling stops at the next request
// or interval.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return false
	}
	c.cancel()
	return true
}

// Wait blocks until no run is in flight.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels any run, waits for it, and refuses further runs.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Controller) begin(ctx context.Context) (context.Context, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state.Generating {
		return nil, "", false
	}
	prompt := c.state.Prompt
	if strings.TrimSpace(prompt) == "" {
		return nil, "", false
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state.Error = ""
	c.state.Generating = true
	c.state.Status = StatusConnecting
	c.state.Phase = PhaseSubmitting
	c.state.JobID = ""
	c.state.UpdatedAt = c.now()
	c.wg.Add(1)
	return runCtx, prompt, true
}

func (c *Controller) run(ctx context.Context, prompt string) {
	promptID, err := c.backend.Submit(ctx, prompt)
	if err != nil {
		c.fail(ctx, err)
		return
	}
	c.update(func(s *State) {
		s.Status = StatusGenerating
		s.Phase = PhasePolling
		s.JobID = promptID
	})

	imageURL, err := c.backend.ResolveImage(ctx, promptID)
	if err != nil {
		c.fail(ctx, err)
		return
	}
	c.finish(func(s *State) {
		s.ImageURL = imageURL
		s.Phase = PhaseSucceeded
	})
	c.logger.Info().Str("prompt_id", promptID).Str("image_url", imageURL).Msg("studio: image ready")
}

// fail records err for display. The previous image stays visible.
func (c *Controller) fail(ctx context.Context, err error) {
	msg := strings.TrimSpace(err.Error())
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		msg = CanceledError
	}
	if msg == "" {
		msg = FallbackError
	}
	if comfy.IsTimeout(err) {
		c.logger.Warn().Err(err).Msg("studio: generation timed out")
		msg = TimeoutError
	} else {
		c.logger.Error().Err(err).Msg("studio: generation failed")
	}
	c.finish(func(s *State) {
		s.Error = msg
		s.Phase = PhaseFailed
	})
}

// finish applies the terminal update and releases the run in one step, so a
// new run can only begin once this one has let go of its cancel func.
func (c *Controller) finish(fn func(*State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.state)
	c.state.Status = StatusNone
	c.state.Generating = false
	c.state.UpdatedAt = c.now()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) update(fn func(*State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.state)
	c.state.UpdatedAt = c.now()
}

// File is a downloaded image ready to be handed to the browser.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// DownloadName returns the save-as name for an image fetched at t.
func DownloadName(t time.Time) string {
	return fmt.Sprintf("SD-Image-%d.png", t.UnixMilli())
}

// Download fetches the current image. It returns nil when there is no image
// or the fetch fails; failures are logged and never shown to the user.
func (c *Controller) Download(ctx context.Context) *File {
	imageURL := c.State().ImageURL
	if imageURL == "" {
		return nil
	}
	data, contentType, err := c.backend.FetchImage(ctx, imageURL)
	if err != nil {
		c.logger.Error().Err(err).Str("image_url", imageURL).Msg("studio: download failed")
		return nil
	}
	file := &File{Name: DownloadName(c.now()), ContentType: contentType, Data: data}
	if c.saver != nil {
		key, err := c.saver.Write(ctx, file.Name, data)
		if err != nil {
			c.logger.Error().Err(err).Str("file", file.Name).Msg("studio: failed to save download")
		} else {
			c.logger.Info().Str("key", key).Msg("studio: download saved")
		}
	}
	return file
}
