package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rpcswitch/rpc-switch/pkg/authverify"
	"github.com/rpcswitch/rpc-switch/pkg/logging"
	"github.com/rpcswitch/rpc-switch/pkg/policy"
	"github.com/rpcswitch/rpc-switch/pkg/reload"
	"github.com/rpcswitch/rpc-switch/pkg/rpcswitch"
	"github.com/rpcswitch/rpc-switch/pkg/state"
	"github.com/rpcswitch/rpc-switch/pkg/tracing"
	"github.com/rpcswitch/rpc-switch/pkg/transport"
)

var (
	servePolicyPath        string
	serveListenAddr        string
	serveWSAddr            string
	serveWSPath            string
	servePidfile           string
	serveWatch             bool
	servePingInterval      time.Duration
	serveLogLevel          string
	serveLogFormat         string
	serveLogFile           string
	serveAuthURL           string
	serveAuthToken         string
	serveOTLPEndpoint      string
	serveMinWorkerProtocol string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the switch daemon",
	Long: `Loads the access-control policy and starts accepting client and
worker connections on the configured listeners.

SIGHUP triggers a policy reload, the same as a detected change to the
policy file when --watch is set. SIGTERM/SIGINT close the listeners and
shut the daemon down; in-flight channels are not drained first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePolicyPath, "policy", "policy.yaml", "path to the access-control policy file")
	serveCmd.Flags().StringVar(&serveListenAddr, "listen", ":7654", "TCP address to accept client/worker connections on")
	serveCmd.Flags().StringVar(&serveWSAddr, "ws-listen", "", "HTTP address to accept websocket connections on (disabled if empty)")
	serveCmd.Flags().StringVar(&serveWSPath, "ws-path", "/ws", "HTTP path the websocket transport is mounted on")
	serveCmd.Flags().StringVar(&servePidfile, "pidfile", "", "path to write the daemon's pidfile (enables `reload`/`stop` by pidfile)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "watch the policy file for changes and reload automatically")
	serveCmd.Flags().DurationVar(&servePingInterval, "ping-interval", rpcswitch.DefaultPingInterval, "interval between worker liveness pings")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "info", "log level: debug, info, warn, error")
	serveCmd.Flags().StringVar(&serveLogFormat, "log-format", "json", "log format: json or text")
	serveCmd.Flags().StringVar(&serveLogFile, "log-file", "", "log file path with rotation (stderr if empty)")
	serveCmd.Flags().StringVar(&serveAuthURL, "auth-url", "", "external auth service endpoint (static shared-secret auth if empty)")
	serveCmd.Flags().StringVar(&serveAuthToken, "auth-token", "", "bearer token for --auth-url, or the shared secret for static auth")
	serveCmd.Flags().StringVar(&serveOTLPEndpoint, "otlp-endpoint", "", "OTLP/HTTP collector address for dispatch tracing (disabled if empty)")
	serveCmd.Flags().StringVar(&serveMinWorkerProtocol, "min-worker-protocol", "", "semver constraint a worker's announce-time protocol_version must satisfy (unenforced if empty)")
}

func runServe() error {
	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(serveLogLevel)
	logCfg.Format = logging.ParseFormat(serveLogFormat)
	logCfg.Component = "rpcswitchd"
	if serveLogFile != "" {
		logCfg.Output = &lumberjack.Logger{
			Filename:   serveLogFile,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}
	}
	logger := logging.NewStructuredLogger(logCfg)

	pol, err := policy.Load(servePolicyPath)
	if err != nil {
		return fmt.Errorf("loading policy: %w", err)
	}

	var verifier rpcswitch.AuthVerifier
	if serveAuthURL != "" {
		verifier = authverify.NewHTTPVerifier(serveAuthURL, serveAuthToken)
	} else {
		logger.Warn("no --auth-url configured, using static shared-secret auth")
		verifier = authverify.NewStaticVerifier(serveAuthToken)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{Endpoint: serveOTLPEndpoint, ServiceName: "rpcswitchd"})
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	broker := rpcswitch.New(pol, rpcswitch.Options{
		Auth:              verifier,
		Logger:            logger,
		PingInterval:      servePingInterval,
		MinWorkerProtocol: serveMinWorkerProtocol,
	})

	ln, err := transport.Listen(serveListenAddr, broker, logger)
	if err != nil {
		return fmt.Errorf("starting listener on %s: %w", serveListenAddr, err)
	}

	serverErr := make(chan error, 2)
	go func() {
		if err := ln.Serve(ctx); err != nil {
			serverErr <- fmt.Errorf("tcp listener: %w", err)
		}
	}()
	logger.Info("listening for connections", "addr", serveListenAddr)

	var wsServer *http.Server
	if serveWSAddr != "" {
		mux := http.NewServeMux()
		mux.Handle(serveWSPath, transport.NewWebSocketHandler(broker, logger))
		wsServer = &http.Server{Addr: serveWSAddr, Handler: mux}
		go func() {
			if err := wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				serverErr <- fmt.Errorf("websocket listener: %w", err)
			}
		}()
		logger.Info("listening for websocket connections", "addr", serveWSAddr, "path", serveWSPath)
	}

	select {
	case err := <-serverErr:
		return err
	case <-time.After(100 * time.Millisecond):
	}

	reloadHandler := reload.NewHandler(servePolicyPath, pol, broker)
	reloadHandler.SetLogger(logger)

	if servePidfile != "" {
		st := &state.DaemonState{
			PID:        os.Getpid(),
			PolicyPath: servePolicyPath,
			ListenAddr: serveListenAddr,
			StartedAt:  time.Now(),
		}
		if err := state.Save(servePidfile, st); err != nil {
			logger.Warn("failed to write pidfile", "path", servePidfile, "error", err)
		} else {
			defer func() { _ = state.Delete(servePidfile) }()
		}
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			result, err := reloadHandler.Reload()
			if err != nil {
				logger.Error("reload failed", "error", err)
				continue
			}
			logger.Info("reload triggered by SIGHUP", "success", result.Success, "message", result.Message)
		}
	}()

	if serveWatch {
		watcher := reload.NewWatcher(servePolicyPath, func() error {
			result, err := reloadHandler.Reload()
			if err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("%s", result.Message)
			}
			return nil
		})
		watcher.SetLogger(logger)
		go func() {
			if err := watcher.Watch(ctx); err != nil && err != context.Canceled {
				logger.Error("policy watcher stopped", "error", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serverErr:
		return err
	}

	_ = ln.Close()
	if wsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = wsServer.Shutdown(shutdownCtx)
	}

	return nil
}
