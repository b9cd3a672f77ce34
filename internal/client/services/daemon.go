package services

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/marinelog/internal/api"
	"github.com/dmitrijs2005/marinelog/internal/client/connectivity"
	"github.com/dmitrijs2005/marinelog/internal/client/notice"
	"github.com/dmitrijs2005/marinelog/internal/logging"
)

const DefaultRedialDelay = 5 * time.Second

// TransitionSource is the connectivity monitor as seen by the daemon.
type TransitionSource interface {
	Run(ctx context.Context)
	Events() <-chan connectivity.Transition
}

// Watcher opens the realtime change channel.
type Watcher interface {
	Watch(ctx context.Context, fn func(api.ChangeEvent)) error
}

// Daemon requests a reconciliation pass on start, on every transition to
// online and on every realtime change event. The change channel is kept
// open while online.
type Daemon struct {
	svc     *RecordService
	monitor TransitionSource
	watcher Watcher
	notices notice.Sink
	logger  logging.Logger
	redial  time.Duration

	// OnReport, when set, receives the outcome of every pass.
	OnReport func(Report)
}

func NewDaemon(svc *RecordService, monitor TransitionSource, watcher Watcher, notices notice.Sink, logger logging.Logger) *Daemon {
	if notices == nil {
		notices = notice.Nop{}
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Daemon{svc: svc, monitor: monitor, watcher: watcher, notices: notices, logger: logger, redial: DefaultRedialDelay}
}

// SetRedialDelay sets the pause before re-opening a dropped change channel.
func (d *Daemon) SetRedialDelay(v time.Duration) {
	d.redial = v
}

// Run blocks until ctx is done.
func (d *Daemon) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.monitor.Run(ctx)
	}()

	trigger := make(chan struct{}, 1)
	request := func() {
		select {
		case trigger <- struct{}{}:
		default:
		}
	}
	request()

	var stopWatch context.CancelFunc
	defer func() {
		if stopWatch != nil {
			stopWatch()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case tr := <-d.monitor.Events():
			if tr.Online {
				d.notices.Notify(ctx, notice.New(notice.LevelInfo, notice.CameOnline))
				request()
				if stopWatch == nil {
					wctx, cancel := context.WithCancel(ctx)
					stopWatch = cancel
					wg.Add(1)
					go func() {
						defer wg.Done()
						d.watch(wctx, request)
					}()
				}
				continue
			}
			d.notices.Notify(ctx, notice.New(notice.LevelWarning, notice.WentOffline))
			if stopWatch != nil {
				stopWatch()
				stopWatch = nil
			}

		case <-trigger:
			wg.Add(1)
			go func() {
				defer wg.Done()
				report, err := d.svc.Reconcile(ctx)
				if err != nil {
					d.logger.Error(ctx, "reconciliation failed", "error", err)
					return
				}
				if !report.Coalesced && d.OnReport != nil {
					d.OnReport(report)
				}
			}()
		}
	}
}

// watch keeps the change channel open, re-dialing after failures.
func (d *Daemon) watch(ctx context.Context, onChange func()) {
	for {
		err := d.watcher.Watch(ctx, func(ev api.ChangeEvent) {
			d.logger.Debug(ctx, "remote change", "record", ev.RecordID, "op", ev.Op)
			onChange()
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			d.logger.Warn(ctx, "change channel dropped", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.redial):
		}
	}
}
