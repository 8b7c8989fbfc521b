// Package commands implements the icedaemon command line interface:
// config loading, logger construction, the prometheus/reload management
// endpoint and the blocking run loop, grounded on gortcd's
// internal/cli's explicit-*viper.Viper-threaded style (cli.go's
// getRoot/initConfigCommon/initViper) rather than the older
// package-global viper style kept for reference in internal/cli/run.go
// (see DESIGN.md).
package commands

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/netice/ice"
	"github.com/netice/ice/internal/config"
	"github.com/netice/ice/internal/manage"
	"github.com/netice/ice/internal/reload"
	"github.com/netice/ice/socket"
)

var cfgFile string

func getRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "icedaemon",
		Short: "icedaemon hosts an ICE agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: icedaemon.yml searched in ., /etc/icedaemon/ and the home directory, else built-in defaults)")
	root.AddCommand(getKeyCmd())
	return root
}

// Execute starts the root command.
func Execute() {
	if err := getRoot().Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func run() error {
	v := config.New(afero.NewOsFs())
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}

	raw, err := config.Load(v)
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	built, err := config.Build(raw)
	if err != nil {
		return errors.Wrap(err, "build config")
	}
	l := built.Log
	defer func() { _ = l.Sync() }()

	if cfgPath := v.ConfigFileUsed(); cfgPath != "" {
		l.Info("config file used", zap.String("path", cfgPath))
	} else {
		l.Info("default configuration used")
	}

	reg := prometheus.NewPedanticRegistry()
	if built.Metrics != nil {
		if err := reg.Register(built.Metrics); err != nil {
			return errors.Wrap(err, "register metrics")
		}
	}

	runtime := ice.NewRuntime(l)
	defer runtime.Close()

	const streamID = "default"
	start := func(built *config.Built) error {
		sock, err := socket.ListenUDPReusable("udp", "", built.Bind)
		if err != nil {
			return errors.Wrap(err, "bind socket")
		}
		agent, err := runtime.NewAgent(streamID, built.Agent, ice.NopListener{})
		if err != nil {
			_ = sock.Close()
			return errors.Wrap(err, "construct agent")
		}
		agent.AddComponent(1, sock)
		l.Info("agent started", zap.Stringer("role", built.Agent.Role))
		return nil
	}
	if err := start(built); err != nil {
		return err
	}

	n := reload.NewNotifier()
	reloadAgent := func() {
		raw, err := config.Load(v)
		if err != nil {
			l.Error("failed to reload config", zap.Error(err))
			return
		}
		rebuilt, err := config.Build(raw)
		if err != nil {
			l.Error("failed to rebuild config", zap.Error(err))
			return
		}
		runtime.CloseAgent(streamID)
		if err := start(rebuilt); err != nil {
			l.Error("failed to restart agent after reload", zap.Error(err))
		}
	}

	if built.Management.Prometheus && built.Management.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
			ErrorLog:      zap.NewStdLog(l),
			ErrorHandling: promhttp.HTTPErrorOnError,
		}))
		mux.Handle("/reload", manage.NewManager(l.Named("manage"), n))
		go func() {
			l.Info("management endpoint listening", zap.String("addr", built.Management.Addr))
			if err := http.ListenAndServe(built.Management.Addr, mux); err != nil {
				l.Error("management endpoint failed", zap.Error(err))
			}
		}()
	}

	watcher, err := config.Watch(v, l, func(rebuilt *config.Built, err error) {
		if err != nil {
			return
		}
		l.Info("config reloaded from filesystem change")
		runtime.CloseAgent(streamID)
		if err := start(rebuilt); err != nil {
			l.Error("failed to restart agent after reload", zap.Error(err))
		}
	})
	if err != nil {
		l.Warn("filesystem config watch disabled", zap.Error(err))
	} else {
		defer func() { _ = watcher.Close() }()
	}

	go func() {
		for range n.C {
			l.Info("reload requested via management endpoint")
			reloadAgent()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	l.Info("shutting down")
	return nil
}
