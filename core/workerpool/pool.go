package workerpool

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrWorkerUnavailable is returned when the worker serving a job died or
// became unusable. The job was not retried; retry policy belongs to the
// caller. The pool lazily respawns a replacement on next use.
var ErrWorkerUnavailable = errors.New("workerpool: worker unavailable")

// ErrPoolClosed is returned by Do after Stop.
var ErrPoolClosed = errors.New("workerpool: pool is closed")

// LogFunc receives out-of-band log messages forwarded from the worker while
// its job runs.
type LogFunc func(level, message string)

// Pool owns a set of isolated worker processes and marshals job
// requests/results across the process boundary. One pool is shared across
// all tenants' runs; it is injected into the coordinator, not a global.
type Pool struct {
	cfg    Config
	logger *zap.Logger

	slots chan struct{} // one token per allowed concurrent job

	mu     sync.Mutex
	idle   []*process
	closed bool
}

// New creates a pool. Workers are spawned lazily on first use.
func New(cfg Config, logger *zap.Logger) *Pool {
	p := &Pool{
		cfg:    cfg,
		logger: logger,
		slots:  make(chan struct{}, cfg.workers()),
	}
	for i := 0; i < cfg.workers(); i++ {
		p.slots <- struct{}{}
	}
	return p
}

// Do runs one request on a pooled worker and returns the raw result.
// Responses are correlated by request id and delivered only to this caller.
// On worker crash the error wraps ErrWorkerUnavailable; a job failure
// reported by a healthy worker is a *RemoteError.
func (p *Pool) Do(ctx context.Context, typ string, payload any, onLog LogFunc) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	select {
	case <-p.slots:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { p.slots <- struct{}{} }()

	proc, err := p.checkout()
	if err != nil {
		return nil, err
	}

	req := &Request{ID: uuid.NewString(), Type: typ, Payload: raw}

	jobCtx, cancel := context.WithTimeout(ctx, p.cfg.jobTimeout())
	defer cancel()

	result, err := proc.call(jobCtx, req, onLog)
	if err != nil {
		var remote *RemoteError
		if errors.As(err, &remote) {
			// Worker is fine, only the job failed.
			p.checkin(proc)
			return nil, err
		}
		proc.kill()
		return nil, err
	}

	p.checkin(proc)
	return result, nil
}

// checkout returns an idle worker or spawns a fresh one.
func (p *Pool) checkout() (*process, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if n := len(p.idle); n > 0 {
		proc := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return proc, nil
	}
	p.mu.Unlock()

	return spawn(p.cfg, p.logger)
}

func (p *Pool) checkin(proc *process) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		proc.kill()
		return
	}
	p.idle = append(p.idle, proc)
}

// Stop kills all idle workers and rejects new jobs. In-flight jobs keep
// their worker until they finish or time out.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, proc := range idle {
		proc.kill()
	}
}

// Drain waits for all in-flight jobs to finish, then stops the pool.
func (p *Pool) Drain(ctx context.Context) error {
	for i := 0; i < p.cfg.workers(); i++ {
		select {
		case <-p.slots:
		case <-ctx.Done():
			p.Stop()
			return ctx.Err()
		}
	}
	p.Stop()
	return nil
}

// process is one live worker child.
type process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	enc    *json.Encoder
	dec    *json.Decoder
	logger *zap.Logger

	killOnce sync.Once
}

func spawn(cfg Config, logger *zap.Logger) (*process, error) {
	argv := cfg.command()
	cmd := exec.Command(argv[0], argv[1:]...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkerUnavailable, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkerUnavailable, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkerUnavailable, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: spawn: %v", ErrWorkerUnavailable, err)
	}

	logger.Info("spawned media worker", zap.Int("pid", cmd.Process.Pid))

	// Anything a worker prints to stderr goes to the host log verbatim.
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			logger.Warn("worker stderr",
				zap.Int("pid", cmd.Process.Pid),
				zap.String("line", scanner.Text()),
			)
		}
	}()

	return &process{
		cmd:    cmd,
		stdin:  stdin,
		enc:    json.NewEncoder(stdin),
		dec:    json.NewDecoder(stdout),
		logger: logger,
	}, nil
}

type callOutcome struct {
	result json.RawMessage
	err    error
}

// call writes one request and reads messages until its response arrives.
// Log messages carrying the request id are forwarded to onLog. A context
// expiry abandons the job: the worker is killed because blocking CPU decode
// work cannot be interrupted any other way.
func (pr *process) call(ctx context.Context, req *Request, onLog LogFunc) (json.RawMessage, error) {
	if err := pr.enc.Encode(req); err != nil {
		return nil, fmt.Errorf("%w: write request: %v", ErrWorkerUnavailable, err)
	}

	done := make(chan callOutcome, 1)
	go func() {
		for {
			var msg Message
			if err := pr.dec.Decode(&msg); err != nil {
				done <- callOutcome{err: fmt.Errorf("%w: read response: %v", ErrWorkerUnavailable, err)}
				return
			}
			if msg.Type == TypeLog {
				if msg.ID == req.ID && onLog != nil {
					onLog(msg.Level, msg.Text)
				}
				continue
			}
			if msg.ID != req.ID {
				// A response for somebody else means the stream is out of
				// sync; the worker can no longer be trusted.
				done <- callOutcome{err: fmt.Errorf("%w: response id mismatch (got %s, want %s)", ErrWorkerUnavailable, msg.ID, req.ID)}
				return
			}
			if !msg.Success {
				done <- callOutcome{err: &RemoteError{Msg: msg.Error}}
				return
			}
			done <- callOutcome{result: msg.Result}
			return
		}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		pr.kill()
		return nil, fmt.Errorf("%w: %v", ErrWorkerUnavailable, ctx.Err())
	}
}

func (pr *process) kill() {
	pr.killOnce.Do(func() {
		_ = pr.stdin.Close()
		if pr.cmd.Process != nil {
			_ = pr.cmd.Process.Kill()
		}
		go func() { _ = pr.cmd.Wait() }()
	})
}
