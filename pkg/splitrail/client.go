package splitrail

import (
	"context"
	"fmt"

	"github.com/Piebald-AI/splitrail/internal/engine"
	"github.com/Piebald-AI/splitrail/internal/watch"
	"github.com/Piebald-AI/splitrail/pkg/config"
	"github.com/Piebald-AI/splitrail/pkg/model"
	"github.com/Piebald-AI/splitrail/pkg/progress"
)

// Client provides high-level usage-statistics operations over one
// state directory.
type Client struct {
	cfg *config.Config
	eng *engine.Engine
}

// Options configures Open.
type Options struct {
	Config   *config.Config    // nil loads the on-disk configuration
	Progress progress.Callback // optional decode progress reporter
}

// Open loads persisted state and publishes a snapshot. When nothing
// changed since the previous run, Open returns without reading a
// single source file; otherwise it runs one reconcile cycle first.
//
// Source decoders register themselves on import; embedders must blank
// import the decoder packages they want active, the same way
// cmd/splitrail does.
func Open(ctx context.Context, opts Options) (*Client, error) {
	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("splitrail open: %w", err)
		}
		cfg = loaded
	}

	eng, err := engine.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("splitrail open: %w", err)
	}
	if opts.Progress != nil {
		eng.SetProgress(opts.Progress)
	}

	return &Client{cfg: cfg, eng: eng}, nil
}

// Stats returns the most recently published snapshot. It never blocks
// on a cycle in flight; two calls returning the same pointer saw the
// same publish.
func (c *Client) Stats() *model.Snapshot {
	return c.eng.Snapshot()
}

// Refresh runs one full discovery and reconcile cycle, then publishes
// a fresh snapshot.
func (c *Client) Refresh(ctx context.Context) error {
	return c.eng.Refresh(ctx)
}

// Rescan discards all identity checks for the next cycle and
// re-decodes every discovered file, then publishes a fresh snapshot.
// Use it when file contents may have changed without any visible
// size or mtime difference.
func (c *Client) Rescan(ctx context.Context) error {
	c.eng.InvalidateAll()
	return c.eng.Refresh(ctx)
}

// MarkChanged marks one source file dirty. The next cycle re-decodes
// it even if its identity looks unchanged. It does not trigger a
// cycle by itself; follow with Refresh or let a Watch loop pick it up.
func (c *Client) MarkChanged(path string) {
	c.eng.Invalidate(path)
}

// Conversations lists every conversation in the corpus, most recent
// first.
func (c *Client) Conversations() []*model.ConversationSummary {
	return c.eng.Conversations()
}

// Events returns one conversation's deduplicated events, sorted by
// timestamp. Returns nil when the conversation is unknown.
func (c *Client) Events(conversationID string) *model.ConversationEvents {
	return c.eng.Events(conversationID)
}

// Watch blocks consuming filesystem notifications until ctx ends,
// publishing a fresh snapshot after every burst of changes. Returns
// errclass.ErrWatchUnavailable when notifications cannot be
// established; embedders should fall back to periodic Refresh calls.
func (c *Client) Watch(ctx context.Context) error {
	w, err := watch.Start(ctx, c.cfg.Debounce())
	if err != nil {
		return err
	}
	defer w.Close()
	return c.eng.Run(ctx, w.Invalidations())
}

// Config returns the configuration the client was opened with.
func (c *Client) Config() *config.Config {
	return c.cfg
}
