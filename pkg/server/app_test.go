package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"TaskStream/pkg/config"
	xhttp "TaskStream/pkg/http"
	applogger "TaskStream/pkg/logger"
)

func TestRunClosesResourcesInOrder(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Port = 0

	var order []string
	closer := func(name string, err error) Closer {
		return Closer{Name: name, Close: func() error {
			order = append(order, name)
			return err
		}}
	}
	srv := xhttp.NewServer(nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0), xhttp.WithTimeouts(time.Second, time.Second, time.Second))
	app := New(cfg, applogger.Nop(), srv,
		closer("engine", nil),
		closer("store", errors.New("already closed")),
		closer("producer", nil),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := app.run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(order) != 3 || order[0] != "engine" || order[2] != "producer" {
		t.Fatalf("unexpected close order %v", order)
	}
}
