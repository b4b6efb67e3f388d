// Command foundrywatch follows a foundry server's event stream from the
// terminal. It mirrors what the web UI does with the stream: tracks which
// jobs are active, keeps the current job's log, invalidates cached list
// views, and prints a notice when a job completes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/seantiz/foundry/internal/config"
	"github.com/seantiz/foundry/internal/dispatch"
	"github.com/seantiz/foundry/internal/events"
	"github.com/seantiz/foundry/internal/model"
	"github.com/seantiz/foundry/internal/session"
	"github.com/seantiz/foundry/internal/viewcache"
)

// terminalNotifier prints notifications to stdout.
type terminalNotifier struct{}

func (terminalNotifier) Notify(message string) {
	fmt.Printf("*** %s\n", message)
}

func main() {
	url := flag.String("url", "http://localhost:8002/events", "event stream URL")
	flag.Parse()

	cfg := config.Load()
	logger := config.NewLogger(os.Stderr, cfg.LogLevel)

	sess := session.New()
	views := viewcache.New()
	dispatcher := dispatch.NewDispatcher(sess, views, terminalNotifier{}, logger)

	listener := events.NewListener(*url, nil, func(ev model.Event) {
		if ev.Type == model.EventLogUpdate {
			if data, err := ev.LogUpdate(); err == nil {
				for _, line := range data.Lines {
					fmt.Println(line)
				}
			}
		}
		dispatcher.Handle(ev)
	}, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("event stream error: %v", err)
	}
}
