// Package daemon runs the supervising process: job discovery, the bounded
// worker pool, and the control socket.
package daemon

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/harekaze/dirq/internal/config"
	"github.com/harekaze/dirq/internal/discover"
	"github.com/harekaze/dirq/internal/events"
	"github.com/harekaze/dirq/internal/lock"
	"github.com/harekaze/dirq/internal/pool"
	"github.com/harekaze/dirq/internal/queue"
	"github.com/harekaze/dirq/internal/runner"
	"github.com/harekaze/dirq/internal/status"
	"github.com/harekaze/dirq/internal/uds"
)

// Daemon supervises one queue root. A single logical thread of control runs
// discovery and feeds the pool; each accepted job runs in its own worker up
// to the configured concurrency.
type Daemon struct {
	root string
	cfg  config.Config
	log  zerolog.Logger

	logFile  io.Closer
	fileLock *lock.FileLock
	server   *uds.Server
	storage  *queue.Storage
	bus      *events.Bus
	audit    *events.AuditLogger
	jobs     pool.Runner

	// ctx stops discovery; workerCtx cuts running jobs after the drain
	// timeout expires.
	ctx          context.Context
	cancel       context.CancelFunc
	workerCtx    context.Context
	workerCancel context.CancelFunc

	drained  chan struct{}
	shutdown sync.Once
}

// New creates a daemon logging to <root>/logs/daemon.log.
func New(root string, cfg config.Config) (*Daemon, error) {
	logPath := filepath.Join(root, "logs", "daemon.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open daemon log: %w", err)
	}

	return newDaemon(root, cfg, logFile, logFile)
}

// newDaemon is the internal constructor for testing.
func newDaemon(root string, cfg config.Config, w io.Writer, closer io.Closer) (*Daemon, error) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(w).Level(level).With().Timestamp().Logger()

	ctx, cancel := context.WithCancel(context.Background())
	workerCtx, workerCancel := context.WithCancel(context.Background())

	return &Daemon{
		root:         root,
		cfg:          cfg,
		log:          log,
		logFile:      closer,
		fileLock:     lock.New(filepath.Join(root, "locks", "daemon.lock")),
		server:       uds.NewServer(filepath.Join(root, config.SocketName), log),
		ctx:          ctx,
		cancel:       cancel,
		workerCtx:    workerCtx,
		workerCancel: workerCancel,
		drained:      make(chan struct{}),
	}, nil
}

// Run starts the daemon and blocks until shutdown completes. A non-nil error
// means the daemon stopped for a reason other than an orderly stop request.
func (d *Daemon) Run() error {
	if err := d.fileLock.TryLock(); err != nil {
		return fmt.Errorf("daemon lock: %w", err)
	}
	d.log.Info().Int("pid", os.Getpid()).Msg("daemon starting")

	storage, err := queue.Open(queue.Dirs{
		Inbox:    d.cfg.Queue.InboxDir,
		Progress: d.cfg.Queue.ProgressDir,
		Finished: d.cfg.Queue.FinishedDir,
		Failed:   d.cfg.Queue.FailedDir,
	})
	if err != nil {
		d.cleanup()
		return err
	}
	d.storage = storage

	d.bus = events.NewBus()
	d.bus.Subscribe(events.NewLogEmitter(d.log))
	if d.cfg.Logging.AuditEnabled {
		audit, err := events.NewAuditLogger(filepath.Join(d.root, "logs", "audit.jsonl"), d.cfg.Logging.AuditMaxBytes)
		if err != nil {
			d.cleanup()
			return err
		}
		d.audit = audit
		d.bus.Subscribe(audit)
	}

	if len(d.cfg.Worker.Command) > 0 {
		cmd, err := runner.NewCommand(d.cfg.Worker.Command, d.log)
		if err != nil {
			d.cleanup()
			return err
		}
		d.jobs = cmd
	} else {
		d.jobs = runner.Noop{}
	}

	workers, err := pool.New(d.storage, d.jobs, d.bus, d.cfg.Worker.MaxConcurrency, d.log)
	if err != nil {
		d.cleanup()
		return err
	}
	discovery := discover.New(d.storage, d.bus, d.log)

	pipelineErr := make(chan error, 1)
	go d.runPipeline(discovery, workers, pipelineErr)

	d.registerHandlers()
	if err := d.server.Start(); err != nil {
		d.Shutdown()
		return fmt.Errorf("start control socket: %w", err)
	}
	d.log.Info().Str("socket", filepath.Join(d.root, config.SocketName)).Msg("daemon ready")

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		d.log.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
		// Second signal forces exit.
		go func() {
			<-sigCh
			d.log.Warn().Msg("received second signal, forcing exit")
			os.Exit(1)
		}()
		d.Shutdown()
		return nil
	case err := <-pipelineErr:
		if err != nil {
			d.log.Error().Err(err).Msg("discovery stopped")
		}
		d.Shutdown()
		return err
	}
}

// runPipeline wires discovery into the pool. The candidate channel is closed
// by discovery on every exit path, which lets the pool stop accepting new
// work and drain in-flight workers.
func (d *Daemon) runPipeline(discovery *discover.Discovery, workers *pool.Pool, result chan<- error) {
	candidates := make(chan string)

	var discoverErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		discoverErr = discovery.Run(d.ctx, candidates)
	}()

	workers.Process(d.workerCtx, candidates)
	wg.Wait()

	close(d.drained)
	result <- discoverErr
}

func (d *Daemon) registerHandlers() {
	d.server.Handle("ping", func(req *uds.Request) *uds.Response {
		return uds.SuccessResponse(map[string]string{"status": "ok"})
	})

	d.server.Handle("stats", func(req *uds.Request) *uds.Response {
		return uds.SuccessResponse(status.Counts(d.cfg))
	})

	d.server.Handle("shutdown", func(req *uds.Request) *uds.Response {
		d.log.Info().Msg("shutdown requested via control socket")
		go d.Shutdown()
		return uds.SuccessResponse(map[string]string{"status": "shutdown_accepted"})
	})
}

// Shutdown stops accepting candidates, waits for in-flight workers up to the
// configured timeout, then releases all resources. Idempotent.
func (d *Daemon) Shutdown() {
	d.shutdown.Do(func() {
		d.log.Info().Msg("shutdown started")

		// Stop discovery; the candidate channel closes and the pool drains.
		d.cancel()

		timeout := d.cfg.Daemon.ShutdownTimeoutSec
		if timeout <= 0 {
			timeout = 30
		}

		select {
		case <-d.drained:
			d.log.Info().Msg("pipeline drained")
		case <-time.After(time.Duration(timeout) * time.Second):
			d.log.Warn().Int("timeout_sec", timeout).Msg("shutdown timeout, cancelling running jobs")
			d.workerCancel()
			<-d.drained
		}

		d.server.Stop()
		d.cleanup()
		d.log.Info().Msg("daemon stopped")
	})
}

func (d *Daemon) cleanup() {
	d.workerCancel()
	d.cancel()
	if d.audit != nil {
		d.audit.Close()
	}
	d.fileLock.Unlock()
	if d.logFile != nil {
		d.logFile.Close()
	}
}
