// Package livestatus manages the long-lived visual status object mirrored
// to the OS surface: a well-known JSON file that status bars and desktop
// widgets poll. Exactly one status object exists per manager; updates are
// rate-limited so a slow consumer coalesces ticks instead of seeing a write
// per second of every tick.
package livestatus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/momoosa/stride/internal/util"
)

// StatusFileName is the well-known name of the live status file inside the
// shared directory.
const StatusFileName = "live_status.json"

// DefaultHorizon is the staleness horizon: at most one write per horizon,
// after which the host surface may briefly show stale data until the next
// update arrives. A bounded inconsistency window, by contract.
const DefaultHorizon = time.Second

// Attributes is the payload fixed at creation time.
type Attributes struct {
	SessionID      string  `json:"session_id"`
	Title          string  `json:"title"`
	TargetSeconds  float64 `json:"target_seconds"`
	PrimaryColor   string  `json:"primary_color"`
	SecondaryColor string  `json:"secondary_color"`
	AccentColor    string  `json:"accent_color"`
}

// Content is the payload refreshed on each update.
type Content struct {
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	StartDate      int64   `json:"start_date"` // epoch seconds
	Active         bool    `json:"active"`
}

type payload struct {
	Attributes Attributes `json:"attributes"`
	Content    Content    `json:"content"`
	UpdatedAt  int64      `json:"updated_at"`
}

// Controller owns the status object lifecycle. Pausing must route through
// Update with Active=false, never End, so the surface shows a paused state
// instead of disappearing. Only the process with authority over the surface
// (the main CLI) creates a Controller; widget writers never touch the
// status file.
type Controller struct {
	mu      sync.Mutex
	path    string
	horizon time.Duration
	logger  *slog.Logger
	now     func() time.Time

	active    bool
	attrs     Attributes
	lastWrite time.Time
	pending   *Content // latest suppressed update; superseded, not queued
}

// NewController creates a controller writing into dir.
func NewController(dir string, horizon time.Duration, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	return &Controller{
		path:    filepath.Join(dir, StatusFileName),
		horizon: horizon,
		logger:  logger,
		now:     time.Now,
	}
}

// Path returns the status file path.
func (c *Controller) Path() string { return c.path }

// IsActive reports whether a status object currently exists.
func (c *Controller) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Start creates the status object, destroying any prior one first. The
// initial content is written immediately, outside the rate limit.
func (c *Controller) Start(attrs Attributes, initial Content) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active {
		c.removeLocked()
	}
	c.active = true
	c.attrs = attrs
	c.pending = nil

	if err := c.writeLocked(initial); err != nil {
		return fmt.Errorf("start live status: %w", err)
	}
	return nil
}

// Update refreshes the content. Calls inside the staleness horizon replace
// any pending update rather than queueing; the newest content wins and is
// flushed by the next update (or Flush) past the horizon. Write failures
// are logged, not returned: the next tick brings another chance.
func (c *Controller) Update(content Content) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return
	}

	if c.now().Sub(c.lastWrite) < c.horizon {
		c.pending = &content
		return
	}
	if err := c.writeLocked(content); err != nil {
		c.logger.Warn("update live status", "error", err)
	}
}

// Flush writes the most recent suppressed update, if any and if the
// horizon has passed.
func (c *Controller) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active || c.pending == nil {
		return
	}
	if c.now().Sub(c.lastWrite) < c.horizon {
		return
	}
	content := *c.pending
	if err := c.writeLocked(content); err != nil {
		c.logger.Warn("flush live status", "error", err)
	}
}

// End finalizes and releases the status object. Only for actual stops;
// pauses route through Update.
func (c *Controller) End() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return
	}
	c.removeLocked()
	c.active = false
	c.pending = nil
}

func (c *Controller) writeLocked(content Content) error {
	data, err := json.MarshalIndent(payload{
		Attributes: c.attrs,
		Content:    content,
		UpdatedAt:  c.now().Unix(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal live status: %w", err)
	}
	if err := util.AtomicWriteFile(c.path, data, 0644); err != nil {
		return err
	}
	c.lastWrite = c.now()
	c.pending = nil
	return nil
}

func (c *Controller) removeLocked() {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("remove live status file", "error", err)
	}
}
