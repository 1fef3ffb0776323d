package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Makepad-fr/basket/internal/errs"
	"github.com/Makepad-fr/basket/internal/model"
)

// Remote is a Feed backed by a `basket serve` instance: HTTP for reads and
// writes, a websocket per subscription.
type Remote struct {
	base   *url.URL
	apiKey string
	client *http.Client
	dialer *websocket.Dialer
	log    *zap.Logger

	onState  func(connected bool)
	retryMin time.Duration
	retryMax time.Duration
}

var _ Feed = (*Remote)(nil)

type RemoteOption func(*Remote)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *Remote) { r.client = c }
}

func WithLogger(log *zap.Logger) RemoteOption {
	return func(r *Remote) { r.log = log }
}

// WithConnState is called with false when a subscription's connection
// drops and with true once it is back.
func WithConnState(fn func(connected bool)) RemoteOption {
	return func(r *Remote) { r.onState = fn }
}

// WithRetry bounds the redial backoff (defaults 250ms to 5s).
func WithRetry(first, limit time.Duration) RemoteOption {
	return func(r *Remote) { r.retryMin, r.retryMax = first, limit }
}

// NewRemote returns a feed talking to serverURL. apiKey may be empty when
// the server runs without one.
func NewRemote(serverURL, apiKey string, opts ...RemoteOption) (*Remote, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, errs.New(errs.KindValidation, "invalid server url", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errs.Validation("server url must be http or https: " + serverURL)
	}
	r := &Remote{
		base:   u,
		apiKey: apiKey,
		client: &http.Client{Timeout: 10 * time.Second},
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:    zap.NewNop(),

		retryMin: 250 * time.Millisecond,
		retryMax: 5 * time.Second,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

func (r *Remote) Snapshot(ctx context.Context, room string) (model.Snapshot, error) {
	var out ItemsResponse
	if err := r.do(ctx, http.MethodGet, ItemsPath(room), nil, &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = model.Snapshot{}
	}
	return out.Items, nil
}

func (r *Remote) Create(ctx context.Context, room string, item model.StoredItem) (string, error) {
	var out CreateResponse
	if err := r.do(ctx, http.MethodPost, ItemsPath(room), item, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (r *Remote) Write(ctx context.Context, room, id string, p model.Patch) error {
	return r.do(ctx, http.MethodPatch, ItemPath(room, id), p, nil)
}

func (r *Remote) Delete(ctx context.Context, room, id string) error {
	return r.do(ctx, http.MethodDelete, ItemPath(room, id), nil, nil)
}

func (r *Remote) DeleteAll(ctx context.Context, room string) error {
	return r.do(ctx, http.MethodDelete, ItemsPath(room), nil, nil)
}

// Subscribe dials the room socket and calls fn for every snapshot frame.
// A dropped connection is redialled with backoff; the server sends the
// full room again on every connect. The first dial's failure is returned.
// The subscription ends when ctx is cancelled or Unsubscribe is called.
func (r *Remote) Subscribe(ctx context.Context, room string, fn SnapshotFunc) (Unsubscribe, error) {
	conn, err := r.dial(ctx, room)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			r.read(ctx, conn, room, fn)
			if ctx.Err() != nil {
				return
			}
			r.log.Warn("feed connection lost, reconnecting", zap.String("room", room))
			r.setState(false)
			if conn = r.redial(ctx, room); conn == nil {
				return
			}
			r.log.Info("feed reconnected", zap.String("room", room))
			r.setState(true)
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}

func (r *Remote) dial(ctx context.Context, room string) (*websocket.Conn, error) {
	u := *r.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + SocketPath(room)

	conn, resp, err := r.dialer.DialContext(ctx, u.String(), r.header())
	if err != nil {
		if resp != nil {
			return nil, statusError(resp)
		}
		return nil, errs.Unavailable("dial feed", err)
	}
	return conn, nil
}

// redial retries until a connection is up or ctx ends, which yields nil.
func (r *Remote) redial(ctx context.Context, room string) *websocket.Conn {
	delay := r.retryMin
	for {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
		conn, err := r.dial(ctx, room)
		if err == nil {
			return conn
		}
		r.log.Debug("feed redial failed", zap.String("room", room), zap.Duration("retry_in", delay), zap.Error(err))
		delay = min(delay*2, r.retryMax)
	}
}

// read delivers frames from conn until it fails or ctx ends. It always
// closes conn.
func (r *Remote) read(ctx context.Context, conn *websocket.Conn, room string, fn SnapshotFunc) {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer func() {
		stop()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				r.log.Debug("feed read", zap.String("room", room), zap.Error(err))
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			r.log.Warn("bad feed frame", zap.Error(err))
			continue
		}
		switch msg.Type {
		case MessageSnapshot:
			if msg.Items == nil {
				msg.Items = model.Snapshot{}
			}
			fn(msg.Items)
		case MessageError:
			r.log.Warn("feed error", zap.String("room", room), zap.String("error", msg.Error))
		}
	}
}

func (r *Remote) setState(connected bool) {
	if r.onState != nil {
		r.onState(connected)
	}
}

func (r *Remote) header() http.Header {
	h := http.Header{}
	if r.apiKey != "" {
		h.Set("Authorization", "Bearer "+r.apiKey)
	}
	return h
}

func (r *Remote) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	u := *r.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header = r.header()
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return errs.Unavailable(method+" "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusError maps an HTTP failure back onto an errs kind.
func statusError(resp *http.Response) error {
	msg := resp.Status
	var eb ErrorBody
	if resp.Body != nil {
		if b, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil && json.Unmarshal(b, &eb) == nil && eb.Error.Message != "" {
			msg = eb.Error.Message
		}
	}
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return errs.Validation(msg)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errs.Unauthorized(msg)
	case resp.StatusCode == http.StatusNotFound:
		return errs.NotFound(msg)
	case resp.StatusCode >= 500:
		return errs.Unavailable(msg, nil)
	default:
		return errs.Internal(msg, nil)
	}
}
