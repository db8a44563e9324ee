package workerpool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Handler executes one job inside a worker process. The returned value is
// JSON-encoded into the response. Logs written through the JobLogger are
// forwarded to the host over the side channel.
type Handler func(ctx context.Context, payload json.RawMessage, log *JobLogger) (any, error)

// Server is the worker-process side of the pool protocol: it reads requests
// from stdin, runs the registered handler, and writes responses to stdout.
// Jobs run one at a time; concurrency lives in the pool, not the worker.
type Server struct {
	handlers map[string]Handler

	mu  sync.Mutex // serializes writes so logs and responses never interleave
	enc *json.Encoder
}

// NewServer creates a worker server with no handlers registered.
func NewServer() *Server {
	return &Server{handlers: map[string]Handler{}}
}

// Handle registers the handler for a request type.
func (s *Server) Handle(typ string, h Handler) {
	s.handlers[typ] = h
}

// Serve processes requests until in reaches EOF (the host closed our stdin)
// or the context is canceled.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.enc = json.NewEncoder(out)
	dec := json.NewDecoder(in)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var req Request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode request: %w", err)
		}
		s.dispatch(ctx, &req)
	}
}

func (s *Server) dispatch(ctx context.Context, req *Request) {
	h, ok := s.handlers[req.Type]
	if !ok {
		s.write(&Message{ID: req.ID, Type: req.Type, Success: false, Error: fmt.Sprintf("unknown request type %q", req.Type)})
		return
	}

	jl := &JobLogger{server: s, id: req.ID}

	result, err := func() (result any, err error) {
		// A panicking decode must fail the job, not the worker loop.
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job panicked: %v", r)
			}
		}()
		return h(ctx, req.Payload, jl)
	}()

	if err != nil {
		s.write(&Message{ID: req.ID, Type: req.Type, Success: false, Error: err.Error()})
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		s.write(&Message{ID: req.ID, Type: req.Type, Success: false, Error: fmt.Sprintf("marshal result: %v", err)})
		return
	}
	s.write(&Message{ID: req.ID, Type: req.Type, Success: true, Result: raw})
}

func (s *Server) write(msg *Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(msg)
}

// JobLogger forwards structured log lines to the host, keyed by the request
// id of the job that produced them.
type JobLogger struct {
	server *Server
	id     string
}

func (l *JobLogger) log(level, format string, args ...any) {
	l.server.write(&Message{
		ID:    l.id,
		Type:  TypeLog,
		Level: level,
		Text:  fmt.Sprintf(format, args...),
	})
}

// Infof forwards an info-level log line.
func (l *JobLogger) Infof(format string, args ...any) { l.log("info", format, args...) }

// Warnf forwards a warn-level log line.
func (l *JobLogger) Warnf(format string, args ...any) { l.log("warn", format, args...) }

// Errorf forwards an error-level log line.
func (l *JobLogger) Errorf(format string, args ...any) { l.log("error", format, args...) }
