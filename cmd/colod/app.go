// colod is a soak and bench harness for the checkpoint protocol: it runs the
// primary or secondary side over TCP against a synthetic guest, so the
// protocol, pacing, and teardown behavior can be exercised without a real
// hypervisor underneath.
package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vmftkit/colo"
)

func run(args []string) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	var configPath string
	var verbose bool

	root := &cobra.Command{
		Use:           "colod",
		Short:         "checkpoint protocol harness for a primary/secondary VM pair",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "yaml config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log protocol command traffic")

	newLogger := func() log15.Logger {
		l := log15.New()
		level := log15.LvlInfo
		if verbose {
			level = log15.LvlDebug
		}
		l.SetHandler(log15.LvlFilterHandler(level, log15.StderrHandler))
		return l
	}

	primary := &cobra.Command{
		Use:   "primary",
		Short: "run the primary side: checkpoint a synthetic guest to a peer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if err := applyFlags(cmd, &cfg); err != nil {
				return err
			}
			if cfg.Peer == "" {
				return errors.New("primary requires --peer")
			}
			return runPrimary(newLogger(), cfg)
		},
	}
	addCommonFlags(primary)
	primary.Flags().String("peer", "", "secondary address to dial (host:port)")
	primary.Flags().String("interval", "", "pause between checkpoint cycles (e.g. 100ms)")
	primary.Flags().Int("state-size", 0, "synthetic guest state size in bytes")

	secondary := &cobra.Command{
		Use:   "secondary",
		Short: "run the secondary side: accept and apply checkpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if err := applyFlags(cmd, &cfg); err != nil {
				return err
			}
			return runSecondary(newLogger(), cfg)
		},
	}
	addCommonFlags(secondary)
	secondary.Flags().String("listen", "", "address to accept the primary on (host:port)")
	secondary.Flags().Uint64("max-state-size", 0, "largest acceptable state blob in bytes")

	root.AddCommand(primary, secondary)
	return root
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().Int("buffer", 0, "staging buffer base capacity in bytes")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
}

// applyFlags lets explicitly set flags override the config file.
func applyFlags(cmd *cobra.Command, cfg *config) error {
	var err error
	set := func(name string, apply func()) {
		if err == nil && cmd.Flags().Changed(name) {
			apply()
		}
	}
	getString := func(name string) string {
		v, gerr := cmd.Flags().GetString(name)
		if gerr != nil {
			err = gerr
		}
		return v
	}
	getInt := func(name string) int {
		v, gerr := cmd.Flags().GetInt(name)
		if gerr != nil {
			err = gerr
		}
		return v
	}
	set("peer", func() { cfg.Peer = getString("peer") })
	set("listen", func() { cfg.Listen = getString("listen") })
	set("interval", func() { cfg.CheckpointInterval = getString("interval") })
	set("state-size", func() { cfg.StateSize = getInt("state-size") })
	set("buffer", func() { cfg.BufferCapacity = getInt("buffer") })
	set("metrics-addr", func() { cfg.MetricsAddr = getString("metrics-addr") })
	set("max-state-size", func() {
		v, gerr := cmd.Flags().GetUint64("max-state-size")
		if gerr != nil {
			err = gerr
			return
		}
		cfg.MaxStateSize = v
	})
	if err != nil {
		return err
	}
	if _, derr := cfg.checkpointInterval(); derr != nil {
		return derr
	}
	return nil
}

func setupMetrics(l log15.Logger, addr string) *colo.Metrics {
	if addr == "" {
		return nil
	}
	registry := prometheus.NewRegistry()
	m := colo.NewMetrics(registry)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			l.Error("metrics server exited", "err", err)
		}
	}()
	l.Info("serving metrics", "addr", addr)
	return m
}

func runPrimary(l log15.Logger, cfg config) error {
	interval, err := cfg.checkpointInterval()
	if err != nil {
		return err
	}
	netConn, err := net.Dial("tcp", cfg.Peer)
	if err != nil {
		return errors.Wrapf(err, "can't dial secondary %s", cfg.Peer)
	}
	l.Info("connected to secondary", "peer", cfg.Peer)

	p := colo.NewPrimary(
		colo.NewNetConn(netConn),
		newSyntheticGuest(),
		newSyntheticSnapshotter(cfg.StateSize),
		colo.WithLogger(l),
		colo.WithCheckpointInterval(interval),
		colo.WithBufferCapacity(cfg.BufferCapacity),
		colo.WithMetrics(setupMetrics(l, cfg.MetricsAddr)),
	)
	finishOnSignal(l, p.Finish)
	return p.Run()
}

func runSecondary(l log15.Logger, cfg config) error {
	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return errors.Wrapf(err, "can't listen on %s", cfg.Listen)
	}
	defer ln.Close()
	l.Info("awaiting primary", "listen", cfg.Listen)

	netConn, err := ln.Accept()
	if err != nil {
		return errors.Wrap(err, "can't accept primary")
	}
	l.Info("primary connected", "peer", netConn.RemoteAddr())

	s := colo.NewSecondary(
		colo.NewNetConn(netConn),
		newDiscardLoader(l),
		noopCache{},
		colo.WithLogger(l),
		colo.WithBufferCapacity(cfg.BufferCapacity),
		colo.WithMaxStateSize(cfg.MaxStateSize),
		colo.WithMetrics(setupMetrics(l, cfg.MetricsAddr)),
	)
	finishOnSignal(l, s.Finish)
	return s.Run()
}

// finishOnSignal ends the phase at the next checkpoint boundary on SIGINT or
// SIGTERM.
func finishOnSignal(l log15.Logger, finish func()) {
	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigC
		l.Info("finishing checkpoint phase", "signal", sig)
		finish()
	}()
}
