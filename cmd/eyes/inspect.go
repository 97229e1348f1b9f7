package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vango-dev/eyes"
	"github.com/vango-dev/eyes/pkg/derive"
	"github.com/vango-dev/eyes/pkg/eye"
	"github.com/vango-dev/eyes/pkg/inspect"
)

func inspectCmd(load loader) *cobra.Command {
	var (
		addr     string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Serve a live feed of a demo store",
		Long: `Run a small demo store that mutates on a timer and serve its accesses
to inspector clients.

Endpoints:
  /events   websocket feed of reads, key-reads, writes and delta-reads
  /nodes    JSON snapshot of live derived nodes
  /metrics  Prometheus metrics (when metrics are enabled)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(cmd)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Inspector.Addr
			}

			opts := []eyes.Option{
				eyes.WithLogger(logger),
				eyes.WithMaxRunsPerDrain(cfg.Scheduler.MaxRunsPerDrain),
			}
			srvOpts := []inspect.Option{
				inspect.WithBuffer(cfg.Inspector.Buffer),
				inspect.WithLogger(logger),
			}
			if cfg.Metrics.Enabled {
				reg := prometheus.NewRegistry()
				opts = append(opts, eyes.WithMetrics(reg, cfg.Metrics.Namespace))
				srvOpts = append(srvOpts, inspect.WithGatherer(reg))
			}

			rt := eyes.New(opts...)
			defer rt.Close()
			srv := inspect.New(srvOpts...)
			defer srv.Close()
			defer rt.Observe(srv)()

			d := newDemo(rt)
			srv.SetNodes(rt.Graph().Nodes())

			httpSrv := &http.Server{
				Addr:              addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()
			fmt.Fprintf(cmd.OutOrStdout(), "inspector listening on http://%s\n", addr)
			logger.Info("inspector started", "addr", addr, "interval", interval)

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
		loop:
			for {
				select {
				case <-ctx.Done():
					break loop
				case err := <-errCh:
					return err
				case <-ticker.C:
					d.step()
					srv.SetNodes(rt.Graph().Nodes())
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			logger.Info("inspector stopping", "clients", srv.Clients(), "dropped", srv.Dropped())
			return httpSrv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from eyes.json)")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "time between demo mutations")

	return cmd
}

// demo is a shopping cart: a record of quantities, a list of recent
// items, and derived totals that consume their deltas.
type demo struct {
	rt     *eyes.Runtime
	rng    *rand.Rand
	cart   *eye.Record
	recent *eye.Seq
	items  []string
	total  int
}

func newDemo(rt *eyes.Runtime) *demo {
	d := &demo{
		rt:    rt,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		items: []string{"apple", "bread", "cheese", "dates", "eggs"},
	}
	d.cart = rt.MustWrap(map[string]any{"apple": 1}, "cart").(*eye.Record)
	recent := []any{"apple"}
	d.recent = rt.MustWrap(&recent, "recent").(*eye.Seq)

	rt.Derive(func() {
		for _, c := range eye.LookupDelta(d.cart) {
			if c.HadPrev {
				d.total -= c.Prev.(int)
			}
			if c.HasNext {
				d.total += c.Next.(int)
			}
		}
	}, derive.Options{Name: "cart-total"})

	rt.Derive(func() {
		if n := d.recent.Len(); n > 0 {
			rt.Derive(func() {
				_ = d.recent.Get(0)
			}, derive.Options{Name: "recent-head", Key: "head"})
		}
	}, derive.Options{Name: "recent"})

	return d
}

func (d *demo) step() {
	item := d.items[d.rng.Intn(len(d.items))]
	d.rt.Batch(func() {
		if d.rng.Intn(4) == 0 {
			d.cart.Delete(item)
		} else {
			d.cart.Set(item, d.rng.Intn(5)+1)
		}
		d.recent.Unshift(item)
		if d.recent.Len() > 5 {
			d.recent.SetLen(5)
		}
	})
}
