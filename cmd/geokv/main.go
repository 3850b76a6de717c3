// Command geokv ingests and scans point features in a geokv store.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/geokv/metrics/prom"
)

// app is the state shared by all commands of one invocation.
type app struct {
	v       *viper.Viper
	cfg     *Config
	cfgPath string
	out     io.Writer
	errOut  io.Writer

	metricsAddr string
	metricsURL  string
	metrics     *prom.Collector
	server      *http.Server
}

// commandSpec declares a command. Parents are listed before their children.
type commandSpec struct {
	id     string
	parent string
	build  func(a *app) *cobra.Command
}

var commands = []commandSpec{
	{id: "ingest", build: newIngestCmd},
	{id: "scan", build: newScanCmd},
	{id: "segments", build: newSegmentsCmd},
	{id: "compact", build: newCompactCmd},
	{id: "index", build: newIndexCmd},
	{id: "index list", parent: "index", build: newIndexListCmd},
	{id: "index add", parent: "index", build: newIndexAddCmd},
	{id: "index rm", parent: "index", build: newIndexRmCmd},
}

func newRootCmd(out, errOut io.Writer) (*cobra.Command, *app) {
	a := &app{v: viper.New(), out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "geokv",
		Short:         "Store and scan point features",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(a.v, a.cfgPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return a.startMetrics()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "config file (yaml, json or toml)")
	pf.String("data-dir", "", "local data directory")
	pf.String("store", "", "remote store: s3://bucket/prefix or minio://host/bucket/prefix")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	_ = a.v.BindPFlag("data_dir", pf.Lookup("data-dir"))
	_ = a.v.BindPFlag("store", pf.Lookup("store"))
	_ = a.v.BindPFlag("log_level", pf.Lookup("log-level"))

	byID := map[string]*cobra.Command{"": root}
	for _, spec := range commands {
		parent, ok := byID[spec.parent]
		if !ok {
			panic(fmt.Sprintf("command %q: unknown parent %q", spec.id, spec.parent))
		}
		cmd := spec.build(a)
		parent.AddCommand(cmd)
		byID[spec.id] = cmd
	}
	return root, a
}

func (a *app) startMetrics() error {
	if a.metricsAddr == "" {
		return nil
	}
	reg := prometheus.NewRegistry()
	a.metrics = prom.New(reg)

	ln, err := net.Listen("tcp", a.metricsAddr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	a.metricsURL = "http://" + ln.Addr().String() + "/metrics"
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	a.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintln(a.errOut, "metrics server:", err)
		}
	}()
	return nil
}

func (a *app) shutdown() {
	if a.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.server.Shutdown(ctx)
}

func run(ctx context.Context, args []string, out, errOut io.Writer) error {
	root, a := newRootCmd(out, errOut)
	defer a.shutdown()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
