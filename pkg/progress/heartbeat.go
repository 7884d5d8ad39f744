// Package progress keeps the operator informed while a long call runs.
package progress

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"

	"github.com/walteh/plantshare/pkg/status"
)

// Options configure a heartbeat
type Options struct {
	// Interval between two heartbeat lines
	Interval time.Duration
	// Formatter renders the heartbeat line, the default formatter when nil
	Formatter status.Formatter
	// Spinner, when set, receives a pterm spinner for the lifetime of the heartbeat
	Spinner io.Writer
}

// 💓 Heartbeat writes a status line every interval until it is stopped
type Heartbeat struct {
	sink      status.Sink
	interval  time.Duration
	formatter status.Formatter
	spinner   io.Writer
	now       func() time.Time
	beats     atomic.Int64
	done      atomic.Bool
}

// 🏭 NewHeartbeat creates a heartbeat writing to sink
func NewHeartbeat(sink status.Sink, opts Options) *Heartbeat {
	if sink == nil {
		sink = status.Discard
	}
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.Formatter == nil {
		opts.Formatter = status.NewDefaultFormatter()
	}
	return &Heartbeat{
		sink:      sink,
		interval:  opts.Interval,
		formatter: opts.Formatter,
		spinner:   opts.Spinner,
		now:       time.Now,
	}
}

// Run beats until ctx is done. Ending through ctx is the normal way to stop
// a heartbeat, so Run returns nil then.
func (h *Heartbeat) Run(ctx context.Context) error {
	defer h.done.Store(true)

	start := h.now()
	spinner := h.startSpinner(ctx)
	defer func() {
		if spinner != nil {
			_ = spinner.Stop()
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zerolog.Ctx(ctx).Debug().Int64("beats", h.beats.Load()).Msg("heartbeat stopped")
			return nil
		case <-ticker.C:
			line := h.formatter.FormatHeartbeat(h.now().Sub(start))
			h.sink.WriteLine(ctx, line)
			if spinner != nil {
				spinner.UpdateText(line)
			}
			h.beats.Add(1)
		}
	}
}

func (h *Heartbeat) startSpinner(ctx context.Context) *pterm.SpinnerPrinter {
	if h.spinner == nil {
		return nil
	}
	sp, err := pterm.DefaultSpinner.
		WithWriter(h.spinner).
		WithRemoveWhenDone(true).
		Start(h.formatter.FormatHeartbeat(0))
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("starting spinner")
		return nil
	}
	return sp
}

// Beats returns how many heartbeat lines were written
func (h *Heartbeat) Beats() int {
	return int(h.beats.Load())
}

// Stopped reports whether Run has returned
func (h *Heartbeat) Stopped() bool {
	return h.done.Load()
}
