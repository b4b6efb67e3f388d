package events

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/seantiz/foundry/internal/model"
)

// Handler receives each well-formed event from the stream, in arrival order.
type Handler func(model.Event)

// Listener consumes a remote SSE event stream and delivers decoded events to
// a single handler. It does not reconnect: when the stream ends or the
// transport fails, Run returns and supervision is left to the caller.
type Listener struct {
	url     string
	client  *http.Client
	handler Handler
	logger  *slog.Logger
}

// NewListener creates a listener for the event stream at url. A nil client
// falls back to http.DefaultClient.
func NewListener(url string, client *http.Client, handler Handler, logger *slog.Logger) *Listener {
	if client == nil {
		client = http.DefaultClient
	}
	return &Listener{
		url:     url,
		client:  client,
		handler: handler,
		logger:  logger,
	}
}

// Run connects to the event stream and blocks, dispatching events until the
// stream ends, the transport fails, or ctx is cancelled. The connection is
// released on every exit path. Malformed messages are dropped and logged;
// they never terminate the stream.
func (l *Listener) Run(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect event stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event stream returned status %d", resp.StatusCode)
	}

	l.logger.Info("event stream open", "url", l.url)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()

		// A blank line terminates the current SSE message.
		if line == "" {
			if data.Len() > 0 {
				l.dispatch(data.String())
				data.Reset()
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue // comment / keepalive
		}
		if payload, ok := strings.CutPrefix(line, "data:"); ok {
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(payload, " "))
		}
		// Other SSE fields (event, id, retry) are not used by the producer.
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("read event stream: %w", err)
	}

	l.logger.Info("event stream closed", "url", l.url)
	return ctx.Err()
}

// dispatch decodes one SSE data payload and hands it to the handler.
func (l *Listener) dispatch(payload string) {
	var ev model.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		l.logger.Warn("dropping malformed event", "error", err)
		return
	}
	if ev.Type == "" {
		l.logger.Warn("dropping event with empty type")
		return
	}
	l.handler(ev)
}
