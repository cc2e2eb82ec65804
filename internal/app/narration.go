package app

import (
	"context"
	"errors"
	"log"
	"sync"

	"clinical-case-service/internal/domain"
)

// NarrationState is the lifecycle of the tracked clip.
type NarrationState string

const (
	NarrationIdle      NarrationState = "idle"
	NarrationRequested NarrationState = "requested"
	NarrationLoaded    NarrationState = "loaded"
	NarrationPlaying   NarrationState = "playing"
	// NarrationFailed is kept until the next request after a load or playback error.
	NarrationFailed NarrationState = "failed"
)

// Cue identifies one narration request. Token is unique per controller and lets
// late completions be matched against the request they belong to.
type Cue struct {
	Token  uint64       `json:"token"`
	CaseID string       `json:"caseId"`
	Stage  domain.Stage `json:"stage"`
	URL    string       `json:"url"`
}

// Clip is a loaded narration resource. Play starts playback and returns without
// waiting for it to finish.
type Clip interface {
	Play() error
	Stop()
	Release()
}

// ClipLoader fetches and prepares a clip. Load should honor ctx cancellation but
// the controller does not rely on it.
type ClipLoader interface {
	Load(ctx context.Context, cue Cue) (Clip, error)
}

// NarrationSource maps a case stage to its clip URL.
type NarrationSource interface {
	URL(caseID string, stage domain.Stage) (string, bool)
}

// NarrationStatus is a point-in-time view of the controller.
type NarrationStatus struct {
	State NarrationState `json:"state"`
	Stage domain.Stage   `json:"stage"`
	Token uint64         `json:"token,omitempty"`
	Muted bool           `json:"muted"`
}

type narrationRequest struct {
	cue    Cue
	cancel context.CancelFunc
	clip   Clip
}

// NarrationController plays at most one clip at a time for the current stage.
// Every request stops the previous one first, and a load that completes after its
// request stopped being current releases its clip without touching state.
type NarrationController struct {
	loader ClipLoader
	source NarrationSource
	logger *log.Logger

	mu      sync.Mutex
	loads   sync.WaitGroup
	token   uint64
	current *narrationRequest
	state   NarrationState
	caseID  string
	stage   domain.Stage
	muted   bool
	blurred bool
	closed  bool
}

func NewNarrationController(loader ClipLoader, source NarrationSource, logger *log.Logger) *NarrationController {
	if logger == nil {
		logger = log.Default()
	}
	return &NarrationController{
		loader: loader,
		source: source,
		logger: logger,
		state:  NarrationIdle,
	}
}

// Request switches narration to stage. Playback starts unless the user paused
// or the screen is not focused; the stage is remembered either way.
func (c *NarrationController) Request(caseID string, stage domain.Stage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.releaseLocked()
	c.caseID, c.stage = caseID, stage
	if c.muted || c.blurred {
		return
	}
	c.startLocked()
}

// Pause stops playback and keeps narration muted across stage changes until Resume.
func (c *NarrationController) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muted = true
	c.releaseLocked()
}

// Resume clears the mute and replays the current stage.
func (c *NarrationController) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.muted = false
	c.releaseLocked()
	if !c.blurred {
		c.startLocked()
	}
}

// Blur stops and releases everything when the screen loses focus.
func (c *NarrationController) Blur() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blurred = true
	c.releaseLocked()
}

// Focus replays the current stage unless muted. It is a no-op when not blurred.
func (c *NarrationController) Focus() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.blurred {
		return
	}
	c.blurred = false
	c.releaseLocked()
	if !c.muted {
		c.startLocked()
	}
}

// Reset drops the stage sequence, including the mute flag. Used when a new case loads.
func (c *NarrationController) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked()
	c.caseID, c.stage = "", domain.StageNone
	c.muted = false
}

// Finished is reported when the clip for token played to the end.
func (c *NarrationController) Finished(token uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.cue.Token != token {
		return
	}
	c.releaseLocked()
}

// Status returns the current controller state.
func (c *NarrationController) Status() NarrationStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := NarrationStatus{State: c.state, Stage: c.stage, Muted: c.muted}
	if c.current != nil {
		st.Token = c.current.cue.Token
	}
	return st
}

// Wait blocks until every in-flight load has completed and been applied.
func (c *NarrationController) Wait() {
	c.loads.Wait()
}

// Close releases everything and waits for in-flight loads. No clip plays afterwards.
func (c *NarrationController) Close() {
	c.mu.Lock()
	c.closed = true
	c.releaseLocked()
	c.mu.Unlock()
	c.loads.Wait()
}

func (c *NarrationController) startLocked() {
	if c.caseID == "" || c.stage == domain.StageNone || c.loader == nil || c.source == nil {
		return
	}
	url, ok := c.source.URL(c.caseID, c.stage)
	if !ok {
		return
	}
	c.token++
	ctx, cancel := context.WithCancel(context.Background())
	req := &narrationRequest{
		cue:    Cue{Token: c.token, CaseID: c.caseID, Stage: c.stage, URL: url},
		cancel: cancel,
	}
	c.current = req
	c.state = NarrationRequested
	c.loads.Add(1)
	go c.load(ctx, req)
}

func (c *NarrationController) load(ctx context.Context, req *narrationRequest) {
	defer c.loads.Done()
	clip, err := c.loader.Load(ctx, req.cue)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != req {
		if clip != nil {
			clip.Release()
		}
		return
	}
	if err != nil {
		if clip != nil {
			clip.Release()
		}
		if !errors.Is(err, context.Canceled) {
			c.logger.Printf("narration load failed for %s/%s: %v", req.cue.CaseID, req.cue.Stage, err)
		}
		c.failLocked()
		return
	}
	if clip == nil {
		c.logger.Printf("narration load for %s/%s returned no clip", req.cue.CaseID, req.cue.Stage)
		c.failLocked()
		return
	}
	req.clip = clip
	c.state = NarrationLoaded
	if err := clip.Play(); err != nil {
		c.logger.Printf("narration playback failed for %s/%s: %v", req.cue.CaseID, req.cue.Stage, err)
		c.failLocked()
		return
	}
	c.state = NarrationPlaying
}

func (c *NarrationController) failLocked() {
	c.releaseLocked()
	c.state = NarrationFailed
}

func (c *NarrationController) releaseLocked() {
	req := c.current
	c.current = nil
	c.state = NarrationIdle
	if req == nil {
		return
	}
	req.cancel()
	if req.clip != nil {
		req.clip.Stop()
		req.clip.Release()
	}
}
