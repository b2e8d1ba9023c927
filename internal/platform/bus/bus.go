// Package bus carries the slow path of context resolution over Redis
// pub/sub: requests fan out to enricher workers, responses come back on
// a shared channel and are matched to waiters by request id.
package bus

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"ralcore/internal/platform/logger"
	"ralcore/internal/platform/store/rds"

	perr "ralcore/internal/platform/errors"
)

const (
	// RequestChannel carries enrichment requests
	RequestChannel = "ral:context:request"
	// ResponseChannel carries enrichment responses
	ResponseChannel = "ral:context:response"
	// DefaultTimeout bounds how long a caller waits on the slow path
	DefaultTimeout = 150 * time.Millisecond
)

// Request asks workers for high-entropy context
type Request struct {
	RequestID string    `json:"request_id"`
	UserID    string    `json:"user_id"`
	Query     string    `json:"query"`
	Priority  string    `json:"priority,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Enrichment is the slow-path payload: everything that needs store
// access or cross-session correlation and cannot be derived atomically
type Enrichment struct {
	Memories  []map[string]any `json:"memories,omitempty"`
	Insights  []string         `json:"cross_session_insights,omitempty"`
	Relations map[string]any   `json:"semantic_relations,omitempty"`
}

// Response is a completed enrichment for one request
type Response struct {
	RequestID   string     `json:"request_id"`
	Enrichment  Enrichment `json:"enrichment"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// Config tunes channel names and the await deadline
type Config struct {
	RequestChannel  string
	ResponseChannel string
	Timeout         time.Duration
}

func (c Config) normalize() Config {
	if c.RequestChannel == "" {
		c.RequestChannel = RequestChannel
	}
	if c.ResponseChannel == "" {
		c.ResponseChannel = ResponseChannel
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Bus matches published requests to awaited responses
type Bus struct {
	rds *rds.RDS
	cfg Config

	mu      sync.Mutex
	pending map[string]chan Response
}

// New constructs a bus over an open redis client
func New(r *rds.RDS, cfg Config) *Bus {
	if r == nil {
		panic("bus.New requires a non nil RDS")
	}
	return &Bus{rds: r, cfg: cfg.normalize(), pending: map[string]chan Response{}}
}

// Run consumes the response channel and delivers to waiters until ctx
// ends. Each request id is delivered at most once; responses with no
// waiter are dropped
func (b *Bus) Run(ctx context.Context) error {
	log := logger.Named("resolution-bus")
	sub := b.rds.Subscribe(ctx, b.cfg.ResponseChannel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "bus subscribe failed")
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return perr.Unavailablef("bus response channel closed")
			}
			var resp Response
			if err := json.Unmarshal([]byte(msg.Payload), &resp); err != nil {
				log.Warn().Err(err).Msg("bus: dropping malformed response")
				continue
			}
			b.deliver(resp)
		}
	}
}

// deliver hands a response to its waiter if one is still registered
func (b *Bus) deliver(resp Response) {
	b.mu.Lock()
	waiter, ok := b.pending[resp.RequestID]
	if ok {
		delete(b.pending, resp.RequestID)
	}
	b.mu.Unlock()
	if ok {
		// the waiter channel is buffered so this never blocks
		waiter <- resp
	}
}

// cancel forgets a pending request so a late response is discarded
func (b *Bus) cancel(requestID string) {
	b.mu.Lock()
	delete(b.pending, requestID)
	b.mu.Unlock()
}

// Request publishes an enrichment request and waits up to the
// configured deadline. ok=false means the deadline elapsed and the
// caller should proceed with the atomic context alone
func (b *Bus) Request(ctx context.Context, req Request) (Response, bool, error) {
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, false, perr.Wrap(err, perr.ErrorCodeJSON, "bus request marshal")
	}

	waiter := make(chan Response, 1)
	b.mu.Lock()
	b.pending[req.RequestID] = waiter
	b.mu.Unlock()

	if err := b.rds.Publish(ctx, b.cfg.RequestChannel, payload); err != nil {
		b.cancel(req.RequestID)
		return Response{}, false, perr.Wrap(err, perr.ErrorCodeUnavailable, "bus publish failed")
	}

	timer := time.NewTimer(b.cfg.Timeout)
	defer timer.Stop()

	select {
	case resp := <-waiter:
		return resp, true, nil
	case <-timer.C:
		b.cancel(req.RequestID)
		return Response{}, false, nil
	case <-ctx.Done():
		b.cancel(req.RequestID)
		return Response{}, false, ctx.Err()
	}
}

// Respond publishes a completed enrichment; workers call this
func (b *Bus) Respond(ctx context.Context, resp Response) error {
	if resp.GeneratedAt.IsZero() {
		resp.GeneratedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "bus response marshal")
	}
	return b.rds.Publish(ctx, b.cfg.ResponseChannel, payload)
}

// Serve consumes the request channel and answers each request with the
// handler's enrichment until ctx ends. Handler errors are logged and
// the request is skipped; the caller degrades to the atomic context
func (b *Bus) Serve(ctx context.Context, handle func(context.Context, Request) (Enrichment, error)) error {
	log := logger.Named("resolution-bus")
	sub := b.rds.Subscribe(ctx, b.cfg.RequestChannel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "bus subscribe failed")
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return perr.Unavailablef("bus request channel closed")
			}
			var req Request
			if err := json.Unmarshal([]byte(msg.Payload), &req); err != nil {
				log.Warn().Err(err).Msg("bus: dropping malformed request")
				continue
			}
			enr, err := handle(ctx, req)
			if err != nil {
				log.Warn().Err(err).Str("request_id", req.RequestID).Msg("bus: enrichment failed")
				continue
			}
			if err := b.Respond(ctx, Response{RequestID: req.RequestID, Enrichment: enr}); err != nil {
				log.Warn().Err(err).Str("request_id", req.RequestID).Msg("bus: respond failed")
			}
		}
	}
}
