package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docpublish/internal/metrics"
	"git.home.luguber.info/inful/docpublish/internal/server"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Addr    string `default:"127.0.0.1:8000" help:"Listen address"`
	Watch   bool   `help:"Build first and rebuild when sources change"`
	Metrics bool   `help:"Expose Prometheus metrics on /metrics"`
}

func (c *ServeCmd) Run(g *Global, root *CLI) error {
	p, err := loadProject(root)
	if err != nil {
		return err
	}

	var reg *prom.Registry
	var rec metrics.Recorder = metrics.NoopRecorder{}
	if c.Metrics {
		pr := metrics.NewPrometheusRecorder(prom.NewRegistry())
		reg, rec = pr.Registry(), pr
	}
	srv := server.New(p.paths.OutputRoot, reg)
	addr, err := srv.Start(c.Addr)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.Out, "Serving %s at http://%s/ (Ctrl+C to stop)\n", p.paths.OutputRoot, addr)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Warn("Preview server shutdown", slog.Any("error", err))
		}
	}()

	if c.Watch {
		return runWatch(g, p, rec, srv, WatchCmd{})
	}
	<-g.Context.Done()
	return nil
}
