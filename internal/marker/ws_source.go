package marker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"vote-escrow-ledger/internal/observability"
)

// WSConfig configures the websocket head-feed source.
type WSConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the backoff between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval between ping frames.
	PingInterval time.Duration
	// ReadTimeout bounds waiting for a head message.
	ReadTimeout time.Duration
	// Metrics, when set, tracks feed health and the observed head.
	Metrics *observability.Metrics
}

// DefaultWSConfig returns the default feed configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
	}
}

// headMessage is one frame of the head feed.
type headMessage struct {
	Height uint64 `json:"height"`
}

// WSSource tracks the latest chain head observed on a websocket feed.
// The source is monotonic: a feed that rewinds (e.g. after a reconnect)
// never lowers the reported marker.
type WSSource struct {
	endpoint string
	config   WSConfig
	logger   *log.Logger

	height atomic.Uint64
	closed atomic.Bool

	connMu sync.Mutex
	conn   *websocket.Conn

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWSSource connects to the endpoint and starts following the feed.
func NewWSSource(ctx context.Context, endpoint string, config *WSConfig, logger *log.Logger) (*WSSource, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}

	s := &WSSource{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		done:     make(chan struct{}),
	}
	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.pingLoop()
	return s, nil
}

// Current returns the latest observed head height.
func (s *WSSource) Current() uint64 { return s.height.Load() }

// Close stops the feed.
func (s *WSSource) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.done)
	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.connMu.Unlock()
	s.wg.Wait()
	return nil
}

func (s *WSSource) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	return nil
}

func (s *WSSource) readLoop() {
	defer s.wg.Done()

	delay := s.config.ReconnectDelay
	for {
		select {
		case <-s.done:
			return
		default:
		}

		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()
		if conn == nil {
			if !s.reconnect(&delay) {
				return
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			s.config.Metrics.RecordMarkerFeedError()
			s.logger.Printf("marker feed read: %v", err)
			conn.Close()
			s.connMu.Lock()
			s.conn = nil
			s.connMu.Unlock()
			continue
		}
		delay = s.config.ReconnectDelay

		var msg headMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.config.Metrics.RecordMarkerFeedError()
			s.logger.Printf("marker feed decode: %v", err)
			continue
		}
		s.observe(msg.Height)
	}
}

// observe raises the height, never lowers it.
func (s *WSSource) observe(h uint64) {
	for {
		cur := s.height.Load()
		if h <= cur {
			return
		}
		if s.height.CompareAndSwap(cur, h) {
			s.config.Metrics.UpdateMarker(h)
			return
		}
	}
}

// reconnect dials with backoff; returns false when the source is closed.
func (s *WSSource) reconnect(delay *time.Duration) bool {
	select {
	case <-s.done:
		return false
	case <-time.After(*delay):
	}
	*delay *= 2
	if *delay > s.config.MaxReconnectDelay {
		*delay = s.config.MaxReconnectDelay
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.connect(ctx); err != nil {
		s.logger.Printf("marker feed reconnect: %v", err)
		return true
	}
	s.config.Metrics.RecordMarkerReconnect()
	s.logger.Printf("marker feed reconnected to %s", s.endpoint)
	return true
}

func (s *WSSource) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			conn := s.conn
			s.connMu.Unlock()
			if conn == nil {
				continue
			}
			deadline := time.Now().Add(10 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil && !s.closed.Load() {
				s.logger.Printf("marker feed ping: %v", err)
			}
		}
	}
}
