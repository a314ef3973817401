package sense

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
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	DEFAULT_API_URL      = "https://api.sense.com/apiservice/api/v1"
	DEFAULT_REALTIME_URL = "wss://clientrt.sense.com"

	eventBufferSize   = 32
	closeWriteTimeout = 1 * time.Second
)

var (
	ErrAuthFailed       = errors.New("sense: authentication failed")
	ErrNoMonitor        = errors.New("sense: account has no monitor")
	ErrNotAuthenticated = errors.New("sense: not authenticated")
	ErrClientShutdown   = errors.New("sense: client shut down")
)

type Options struct {
	Email       string
	Password    string
	Verbose     bool
	APIURL      string
	RealtimeURL string
	HTTPClient  *http.Client
	Dialer      *websocket.Dialer
}

// Client talks to the Sense cloud. At most one realtime stream is open at a
// time; its lifecycle is reported on Events.
type Client struct {
	opts       Options
	httpClient *http.Client
	dialer     *websocket.Dialer
	logger     *zap.Logger

	mu       sync.Mutex
	auth     *AuthResponse
	session  *streamSession
	events   chan Event
	shutdown bool
}

type streamSession struct {
	id      string
	conn    *websocket.Conn
	cancel  context.CancelFunc
	closing bool
}

// Setup authenticates and resolves to a ready client.
func Setup(ctx context.Context, opts Options, logger *zap.Logger) (*Client, error) {
	c := NewClient(opts, logger)
	if err := c.GetAuth(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.APIURL == "" {
		opts.APIURL = DEFAULT_API_URL
	}
	if opts.RealtimeURL == "" {
		opts.RealtimeURL = DEFAULT_REALTIME_URL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &Client{
		opts:       opts,
		httpClient: httpClient,
		dialer:     dialer,
		logger:     logger.With(zap.String("component", "sense")),
		events:     make(chan Event, eventBufferSize),
	}
}

func (c *Client) Events() <-chan Event {
	return c.events
}

// GetAuth authenticates with the stored credentials and replaces the token.
func (c *Client) GetAuth(ctx context.Context) error {
	form := url.Values{}
	form.Set("email", c.opts.Email)
	form.Set("password", c.opts.Password)

	endpoint := strings.TrimSuffix(c.opts.APIURL, "/") + "/authenticate"
	c.logger.Debug("send request", zap.String("method", http.MethodPost), zap.String("url", endpoint))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("authenticating: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("reading auth response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d: %s", ErrAuthFailed, res.StatusCode, string(bytes.TrimSpace(body)))
	}

	var auth AuthResponse
	if err := json.Unmarshal(body, &auth); err != nil {
		return fmt.Errorf("decoding auth response: %w", err)
	}
	if !auth.Authorized || auth.AccessToken == "" {
		return ErrAuthFailed
	}
	if len(auth.Monitors) == 0 {
		return ErrNoMonitor
	}

	c.mu.Lock()
	c.auth = &auth
	c.mu.Unlock()

	if c.opts.Verbose {
		c.logger.Info("authenticated", zap.Int64("monitor", auth.Monitors[0].Id))
	}
	return nil
}

// OpenStream starts dialing the realtime feed and returns immediately.
// Dial failures are reported as an ErrorEvent followed by an unclean CloseEvent.
// Opening while a stream is already open does nothing.
func (c *Client) OpenStream(_ context.Context) error {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return ErrClientShutdown
	}
	if c.session != nil {
		c.mu.Unlock()
		return nil
	}
	if c.auth == nil {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}
	feedURL := c.realtimeURL(c.auth)
	dialCtx, cancel := context.WithCancel(context.Background())
	s := &streamSession{
		id:     uuid.NewString(),
		cancel: cancel,
	}
	c.session = s
	c.mu.Unlock()

	if c.opts.Verbose {
		c.logger.Info("opening realtime stream", zap.String("session", s.id))
	}
	go c.run(dialCtx, s, feedURL)
	return nil
}

// CloseStream closes the open stream, if any. The stream reader reports a
// clean CloseEvent once the connection is gone.
func (c *Client) CloseStream() error {
	c.mu.Lock()
	s := c.session
	if s == nil || s.closing {
		c.mu.Unlock()
		return nil
	}
	s.closing = true
	conn := s.conn
	c.mu.Unlock()

	if conn == nil {
		// still dialing
		s.cancel()
		return nil
	}

	err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(closeWriteTimeout))
	conn.Close()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return err
	}
	return nil
}

// Shutdown closes any open stream and the events channel.
func (c *Client) Shutdown() {
	c.CloseStream()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.shutdown {
		c.shutdown = true
		close(c.events)
	}
}

func (c *Client) run(ctx context.Context, s *streamSession, feedURL string) {
	defer s.cancel()

	conn, res, err := c.dialer.DialContext(ctx, feedURL, nil)
	if res != nil && res.Body != nil {
		res.Body.Close()
	}
	if err != nil {
		if c.isClosing(s) {
			c.finish(s, CloseEvent{WasClean: true})
			return
		}
		c.emit(ErrorEvent{Err: fmt.Errorf("dialing realtime feed: %w", err)})
		c.finish(s, CloseEvent{WasClean: false, Reason: err.Error()})
		return
	}

	c.mu.Lock()
	if s.closing {
		c.mu.Unlock()
		conn.Close()
		c.finish(s, CloseEvent{WasClean: true})
		return
	}
	s.conn = conn
	c.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			c.finish(s, c.closeEvent(s, err))
			return
		}
		ev, err := decodeMessage(data)
		if err != nil {
			c.emit(ErrorEvent{Err: err})
			continue
		}
		if c.opts.Verbose {
			c.logger.Debug("realtime message", zap.String("session", s.id), zap.String("type", ev.Type))
		}
		c.emit(ev)
	}
}

func (c *Client) closeEvent(s *streamSession, err error) CloseEvent {
	if c.isClosing(s) {
		return CloseEvent{WasClean: true}
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
		return CloseEvent{WasClean: true, Reason: closeErr.Text}
	}
	c.emit(ErrorEvent{Err: err})
	return CloseEvent{WasClean: false, Reason: err.Error()}
}

func (c *Client) isClosing(s *streamSession) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return s.closing
}

// finish detaches the session and reports its single CloseEvent.
func (c *Client) finish(s *streamSession, ev CloseEvent) {
	c.mu.Lock()
	if c.session == s {
		c.session = nil
	}
	c.mu.Unlock()
	if c.opts.Verbose {
		c.logger.Info("realtime stream closed", zap.String("session", s.id), zap.Bool("clean", ev.WasClean))
	}
	c.emit(ev)
}

func (c *Client) emit(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shutdown {
		return
	}
	c.events <- ev
}

func (c *Client) realtimeURL(auth *AuthResponse) string {
	return fmt.Sprintf("%s/monitors/%d/realtimefeed?access_token=%s",
		strings.TrimSuffix(c.opts.RealtimeURL, "/"), auth.Monitors[0].Id, url.QueryEscape(auth.AccessToken))
}

func decodeMessage(data []byte) (DataEvent, error) {
	var msg realtimeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return DataEvent{}, fmt.Errorf("decoding realtime message: %w", err)
	}
	ev := DataEvent{Type: msg.Type}
	if msg.Type != MESSAGE_TYPE_REALTIME_UPDATE || len(msg.Payload) == 0 || string(msg.Payload) == "null" {
		return ev, nil
	}
	var payload RealtimePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return DataEvent{}, fmt.Errorf("decoding realtime payload: %w", err)
	}
	ev.Payload = &payload
	return ev, nil
}
