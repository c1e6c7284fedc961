package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/nsfjr/slipstack/cmd/slipstackd/internal/serialio"
	"github.com/nsfjr/slipstack/netstack"
	"github.com/nsfjr/slipstack/tcp"
)

var (
	configPath  string
	verbose     bool
	metricsAddr string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "slipstackd",
	Short: "A user-space SLIP/IPv4/TCP host and router",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "slipstackd.toml", "path to the TOML configuration file")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9100", "address to serve Prometheus metrics on")
}

func run(cmd *cobra.Command, args []string) error {
	log := newLogger(verbose)

	cfg, err := netstack.LoadConfig(configPath)
	if err != nil {
		log.Error("failed to load config", "path", configPath, "err", err)
		return err
	}

	registry := prometheus.NewRegistry()
	metrics := tcp.NewMetrics(registry)

	stack, err := netstack.New(cfg, clockwork.NewRealClock(), serialio.Open, log, tcp.WithMetrics(metrics))
	if err != nil {
		log.Error("failed to build stack", "err", err)
		return err
	}

	stack.TCP.OnConnectionAccepted(func(c *tcp.Conn) {
		log.Info("tcp: connection accepted", "conn", c.ID())
		c.OnData(func(conn *tcp.Conn, payload []byte) {
			if len(payload) == 0 {
				log.Info("tcp: peer closed", "conn", conn.ID())
				return
			}
			// Demo echo handler: bounce received bytes back to the
			// peer, giving an operator something observable to test
			// the stack against.
			conn.Send(payload)
		})
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{Addr: metricsAddr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("serving metrics", "addr", metricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "err", err)
		}
	}()

	log.Info("slipstackd running", "host_addr", cfg.HostAddr, "tcp_port", cfg.TCPPort)

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics server shutdown failed", "err", err)
		return err
	}
	return nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339))
			}
			return a
		},
	}))
}
