package relay

import (
	"context"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestServerStartStop(t *testing.T) {
	hub := startHub(t, NewState(newTestClock()), nil)
	settings := Settings{Host: "127.0.0.1", Port: "0", SendBuffer: 8}
	srv := NewServer(settings, newTestHandler(t, hub).Router(), nil, nil)

	if got := srv.Addr(); got != "" {
		t.Errorf("Addr() before Start = %q, want empty", got)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}

func TestServerStartBindError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("cannot reserve port: %v", err)
	}
	defer ln.Close()

	_, port, _ := net.SplitHostPort(ln.Addr().String())
	settings := Settings{Host: "127.0.0.1", Port: port}

	fatal := make(chan error, 1)
	srv := NewServer(settings, http.NotFoundHandler(), func(err error) { fatal <- err }, nil)

	err = srv.Start(context.Background())
	if err == nil {
		t.Fatal("Start() expected bind error")
	}
	if !strings.Contains(err.Error(), "cannot listen") {
		t.Errorf("Start() error = %v", err)
	}
}

func TestServerStopBeforeStart(t *testing.T) {
	srv := NewServer(Settings{Host: "127.0.0.1", Port: "0"}, http.NotFoundHandler(), nil, nil)
	if err := srv.Stop(context.Background()); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
