package ajax

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/daemonp/ajax2mqtt/internal/config"
	"github.com/daemonp/ajax2mqtt/internal/log"
)

const (
	initialReconnectDelay = time.Second
	maxReconnectDelay     = 2 * time.Minute
	maxEventBytes         = 512 * 1024
)

// EventHandler receives the data payload of one stream frame.
type EventHandler func(data []byte)

// SSEClient maintains the long-lived push connection to the Ajax event
// proxy and hands every frame to the handler. Disconnects reconnect with
// exponential backoff; Stop is idempotent.
type SSEClient struct {
	config  *config.AjaxConfig
	log     *log.Logger
	handler EventHandler
	http    *http.Client

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewSSEClient(cfg *config.AjaxConfig, logger *log.Logger) *SSEClient {
	return &SSEClient{
		config: cfg,
		log:    logger,
		// No client timeout: the stream is expected to stay open forever.
		http: &http.Client{},
	}
}

// SetHandler must be called before Start.
func (s *SSEClient) SetHandler(handler EventHandler) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
}

// Start launches the stream loop. It reports false when the client is
// misconfigured; an unreachable proxy still returns true and keeps
// retrying in the background.
func (s *SSEClient) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return true
	}
	if s.config.StreamURL == "" {
		s.log.Error("No stream URL configured")
		return false
	}
	if s.handler == nil {
		s.log.Error("No event handler configured")
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.run(ctx)
	return true
}

// Stop tears the connection down and waits for the loop to exit. Calling
// it twice, or before Start, is harmless.
func (s *SSEClient) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.log.Info("Event stream stopped")
}

func (s *SSEClient) run(ctx context.Context) {
	defer close(s.done)

	delay := initialReconnectDelay
	for {
		connected, err := s.stream(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			delay = initialReconnectDelay
		}
		if err != nil {
			s.log.Error("Event stream disconnected: %v, reconnecting in %s", err, delay)
		} else {
			s.log.Warning("Event stream closed by server, reconnecting in %s", delay)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// stream opens the connection and pumps frames until it breaks. The bool
// reports whether a connection was established at all, which resets the
// reconnect backoff.
func (s *SSEClient) stream(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.StreamURL, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if s.config.APIKey != "" {
		req.Header.Set("X-Api-Key", s.config.APIKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("unexpected status %s", resp.Status)
	}

	s.log.Info("Connected to event stream")

	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()

	err = readEvents(resp.Body, func(frame sseEvent) {
		if len(frame.data) > 0 {
			handler(frame.data)
		}
	})
	return true, err
}

// sseEvent is one parsed text/event-stream frame.
type sseEvent struct {
	name string
	data []byte
}

// readEvents parses a text/event-stream body per the SSE framing rules:
// "data:" lines accumulate (joined by newlines), a blank line dispatches
// the frame, ":" lines are comments. An unterminated trailing frame is
// discarded, matching the protocol.
func readEvents(r io.Reader, emit func(sseEvent)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventBytes)

	var frame sseEvent
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")

		if line == "" {
			if len(frame.data) > 0 {
				emit(frame)
			}
			frame = sseEvent{}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := line, ""
		if i := strings.IndexByte(line, ':'); i >= 0 {
			field = line[:i]
			value = strings.TrimPrefix(line[i+1:], " ")
		}

		switch field {
		case "event":
			frame.name = value
		case "data":
			if len(frame.data) > 0 {
				frame.data = append(frame.data, '\n')
			}
			frame.data = append(frame.data, value...)
		}
	}
	return scanner.Err()
}
