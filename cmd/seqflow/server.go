package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/petrijr/seqflow"
	seqprom "github.com/petrijr/seqflow/pkg/observability/prometheus"
)

const shutdownTimeout = 5 * time.Second

// statusServer serves /metrics, /status and /live over fasthttp.
type statusServer struct {
	registry *prometheus.Registry
	observer *seqprom.Observer
	runner   *seqflow.Runner
	logger   *slog.Logger

	metrics fasthttp.RequestHandler
	srv     *fasthttp.Server
}

type slotJSON struct {
	Task     string           `json:"task"`
	State    string           `json:"state"`
	WorkerID string           `json:"worker_id,omitempty"`
	Params   string           `json:"params,omitempty"`
	Controls seqflow.Controls `json:"controls"`
}

func newStatusServer(logger *slog.Logger) *statusServer {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &statusServer{
		registry: reg,
		observer: seqprom.NewObserver(reg),
		logger:   logger,
		metrics:  fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
	}
	s.srv = &fasthttp.Server{
		Name:    "seqflow",
		Handler: s.handle,
	}
	return s
}

func (s *statusServer) handle(ctx *fasthttp.RequestCtx) {
	if !ctx.IsGet() {
		ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
		return
	}

	switch string(ctx.Path()) {
	case "/metrics":
		s.metrics(ctx)
	case "/status":
		s.status(ctx)
	case "/live":
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"status":"up"}`)
	default:
		ctx.Error("not found", fasthttp.StatusNotFound)
	}
}

func (s *statusServer) status(ctx *fasthttp.RequestCtx) {
	var slots []slotJSON
	if s.runner != nil {
		for _, st := range s.runner.Status() {
			slots = append(slots, slotJSON{
				Task:     st.Task,
				State:    st.State.String(),
				WorkerID: st.WorkerID,
				Params:   st.Params,
				Controls: st.Controls,
			})
		}
	}

	ctx.SetContentType("application/json")
	if err := json.NewEncoder(ctx).Encode(map[string]any{"slots": slots}); err != nil {
		ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
	}
}

// start binds addr and serves in the background.
func (s *statusServer) start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	s.logger.Info("status server listening", slog.String("addr", ln.Addr().String()))
	go func() {
		if err := s.srv.Serve(ln); err != nil {
			s.logger.Error("status server failed", slog.Any("error", err))
		}
	}()
	return nil
}

func (s *statusServer) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.ShutdownWithContext(ctx); err != nil {
		s.logger.Warn("status server shutdown failed", slog.Any("error", err))
	}
}
