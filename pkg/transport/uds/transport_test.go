package uds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/modoterra/fxswitch/pkg/core"
)

func startServer(t *testing.T, register func(*Server)) (*Server, *Client) {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "test.sock")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	srv := NewServer(sock, logger)
	if register != nil {
		register(srv)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go srv.Start(ctx)
	t.Cleanup(func() {
		cancel()
		srv.Shutdown()
	})

	select {
	case <-srv.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("server never became ready")
	}

	client, err := Dial(sock)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return srv, client
}

func reqCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestPingRoundTrip(t *testing.T) {
	_, client := startServer(t, func(s *Server) {
		s.Handle(MethodPing, func(_ context.Context, _ Message) (any, error) {
			return PingResponse{Pong: true, Version: "dev"}, nil
		})
	})

	pong, err := client.Ping(reqCtx(t))
	if err != nil {
		t.Fatalf("ping request: %v", err)
	}
	if !pong.Pong || pong.Version != "dev" {
		t.Errorf("pong = %+v", pong)
	}
}

func TestSocketPermissions(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "perm.sock")
	srv := NewServer(sock, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Start(ctx)
	<-srv.Ready()
	defer srv.Shutdown()

	info, err := os.Stat(sock)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("socket mode = %o, want 600", perm)
	}
}

func TestUnknownMethod(t *testing.T) {
	_, client := startServer(t, nil)

	_, err := client.Request(reqCtx(t), "NoSuchMethod", nil)
	if !errors.Is(err, ErrServer) {
		t.Errorf("err = %v, want ErrServer", err)
	}
}

func TestSetOutputPayload(t *testing.T) {
	_, client := startServer(t, func(s *Server) {
		s.Handle(MethodSetOutput, func(_ context.Context, msg Message) (any, error) {
			var req SetOutputRequest
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				return nil, err
			}
			if req.Description != "Digital Stereo" {
				return nil, fmt.Errorf("sink not found: %s", req.Description)
			}
			return SinkResponse{Sink: core.Sink{Index: 1, Description: req.Description}}, nil
		})
	})

	resp, err := client.SetOutput(reqCtx(t), "Digital Stereo")
	if err != nil {
		t.Fatalf("set output: %v", err)
	}
	if resp.Sink.Index != 1 {
		t.Errorf("sink = %+v", resp.Sink)
	}

	_, err = client.SetOutput(reqCtx(t), "HDMI")
	if err == nil || !errors.Is(err, ErrServer) {
		t.Fatalf("err = %v, want server error", err)
	}
}

func TestHandlerErrorKeepsConnection(t *testing.T) {
	_, client := startServer(t, func(s *Server) {
		s.Handle(MethodToggle, func(context.Context, Message) (any, error) {
			return nil, errors.New("stream output not found: a=PulseEffects")
		})
		s.Handle(MethodPing, func(context.Context, Message) (any, error) {
			return PingResponse{Pong: true}, nil
		})
	})

	if _, err := client.Toggle(reqCtx(t)); err == nil {
		t.Fatal("expected toggle error")
	}
	if _, err := client.Ping(reqCtx(t)); err != nil {
		t.Errorf("ping after failed toggle: %v", err)
	}
}

func TestBroadcastEvent(t *testing.T) {
	srv, client := startServer(t, func(s *Server) {
		s.Handle(MethodPing, func(_ context.Context, _ Message) (any, error) {
			return PingResponse{Pong: true}, nil
		})
	})

	evtCh := make(chan Message, 1)
	client.OnEvent(func(msg Message) {
		evtCh <- msg
	})

	// Ensure connection is established by doing a ping first
	if _, err := client.Ping(reqCtx(t)); err != nil {
		t.Fatalf("ping: %v", err)
	}

	evt, _ := NewEvent(EventRouteChanged, RouteEvent{Current: 1})
	srv.Broadcast(evt)

	select {
	case msg := <-evtCh:
		if msg.Method != EventRouteChanged {
			t.Errorf("expected method %s, got %s", EventRouteChanged, msg.Method)
		}
		var route RouteEvent
		if err := json.Unmarshal(msg.Data, &route); err != nil || route.Current != 1 {
			t.Errorf("route = %+v, err = %v", route, err)
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for broadcast event")
	}
}

func TestClientDoneOnServerShutdown(t *testing.T) {
	srv, client := startServer(t, func(s *Server) {
		s.Handle(MethodPing, func(context.Context, Message) (any, error) {
			return PingResponse{Pong: true}, nil
		})
	})
	if _, err := client.Ping(reqCtx(t)); err != nil {
		t.Fatalf("ping: %v", err)
	}

	srv.Shutdown()
	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client did not notice shutdown")
	}
}

func TestStatusCurrentSink(t *testing.T) {
	s := StatusResponse{
		Sinks:   []core.Sink{{Index: 0, Description: "Analog"}, {Index: 1, Description: "Digital"}},
		Current: 1,
	}
	sink, ok := s.CurrentSink()
	if !ok || sink.Description != "Digital" {
		t.Errorf("CurrentSink() = %+v, %v", sink, ok)
	}
	s.Current = core.NoSink
	if _, ok := s.CurrentSink(); ok {
		t.Error("CurrentSink() found a sink for NoSink")
	}
}
