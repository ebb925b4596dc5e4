package dispatcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"herd/pkg/channel"
	"herd/pkg/transport"
)

// ackIndicator is the substring a worker session shows once it has received
// and started processing its briefing.
const ackIndicator = "esc to interrupt"

// confirmPollInterval is the time between capture-pane acknowledgement checks.
const confirmPollInterval = 1 * time.Second

// PaneProbeConfirmer confirms an assignment by scraping the worker's tmux
// pane until an acknowledgement indicator appears. Scraping is the only
// signal available for an agent running inside a TUI; a confirmation file or
// socket would require cooperation the agent cannot promise.
type PaneProbeConfirmer struct {
	Runner transport.CommandRunner

	// Timeout, when positive, bounds how long Confirm waits for the
	// acknowledgement before the attempt is abandoned. Zero or negative
	// means no deadline: Confirm waits until the indicator appears or ctx
	// is cancelled.
	Timeout time.Duration

	// Sleeper overrides the poll pause for testing.
	Sleeper func(d time.Duration)
}

func (c *PaneProbeConfirmer) sleep(d time.Duration) {
	if c.Sleeper != nil {
		c.Sleeper(d)
		return
	}
	time.Sleep(d)
}

// Confirm polls the channel's pane until the acknowledgement indicator
// appears or ctx is cancelled. A positive Timeout additionally bounds the
// wait.
func (c *PaneProbeConfirmer) Confirm(ctx context.Context, workerID int, ch channel.Channel) error {
	var deadline time.Time
	if c.Timeout > 0 {
		deadline = time.Now().Add(c.Timeout)
	}
	var lastOutput string

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := c.Runner.Run(ctx, "tmux", "capture-pane", "-p", "-t", ch.Target)
		if err == nil {
			lastOutput = string(out)
			if strings.Contains(lastOutput, ackIndicator) {
				return nil
			}
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return fmt.Errorf("worker %d did not acknowledge within %v; last pane content:\n%s",
				workerID, c.Timeout, lastOutput)
		}
		c.sleep(confirmPollInterval)
	}
}
