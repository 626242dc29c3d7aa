package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/nmezhenskyi/listend/internal/acceptor"
	"github.com/nmezhenskyi/listend/internal/bind"
	"github.com/nmezhenskyi/listend/internal/grpcsrv"
	"github.com/nmezhenskyi/listend/internal/httpsrv"
	"github.com/nmezhenskyi/listend/internal/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const healthRefreshInterval = 5 * time.Second

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line in args and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	prog := "listend"
	if len(args) > 0 {
		prog = filepath.Base(args[0])
		args = args[1:]
	}

	cmd, err := newRootCmd(prog, stdout, stderr)
	if err == nil {
		cmd.SetArgs(args)
		err = cmd.ExecuteContext(ctx)
	}
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		if err != errUsage {
			fmt.Fprintf(stderr, "%s: %v\n", prog, err)
		}
		fmt.Fprintf(stderr, "Usage: %s <port>\n", prog)
	default:
		fmt.Fprintf(stderr, "%s: %s\n", prog, describe(err))
	}
	return exitCode(err)
}

// flagKeys maps viper keys to the command line flags they are bound to.
var flagKeys = map[string]string{
	"address":            "address",
	"family":             "family",
	"backlog":            "backlog",
	"verbosity":          "verbosity",
	"shutdownTimeout":    "shutdown-timeout",
	"status.activate":    "status",
	"status.port":        "status-port",
	"status.onLocalhost": "on-localhost",
	"health.activate":    "health",
	"health.port":        "health-port",
	"health.onLocalhost": "on-localhost",
}

func newRootCmd(prog string, stdout, stderr io.Writer) (*cobra.Command, error) {
	v := newViper()
	var configFile string

	cmd := &cobra.Command{
		Use:   prog + " <port>",
		Short: "Bind a TCP port and accept connections on it",
		Long: `Binds a TCP listening socket on the given port and accepts connections on it,
draining and closing each one. Port 0 asks the system for a free port; the
port actually bound is printed once the socket is listening.

Settings can come from flags, LISTEND_* environment variables or a config file.`,
		// Arguments after the port are ignored.
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errUsage
			}
			return nil
		},
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := parsePort(args[0])
			if err != nil {
				return err
			}
			conf, err := readConfig(v, configFile)
			if err != nil {
				return err
			}
			logger := newLogger(conf.Verbosity, stderr)
			return serve(cmd.Context(), conf, port, logger, stdout)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "path to a JSON, YAML or TOML config file")
	flags.String("address", "", "address to bind, empty for every interface")
	flags.String("family", "any", "address family: any, ipv4 or ipv6")
	flags.Int("backlog", 128, "maximum number of pending connections")
	flags.String("verbosity", "prod", "logging: prod, dev or none")
	flags.Duration("shutdown-timeout", 5*time.Second, "grace period for open connections on shutdown")
	flags.Bool("status", false, "serve the status HTTP API")
	flags.Int("status-port", 0, "port of the status HTTP API, 0 picks a free one")
	flags.Bool("health", false, "serve the gRPC health service")
	flags.Int("health-port", 0, "port of the gRPC health service, 0 picks a free one")
	flags.Bool("on-localhost", false, "bind the status and health servers to 127.0.0.1")

	if err := bindFlags(v, flags, flagKeys); err != nil {
		return nil, err
	}
	return cmd, nil
}

// bindFlags binds every viper key in keys to its flag in flags.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	var errs []error
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			errs = append(errs, fmt.Errorf("flag %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// parsePort rejects anything that is not a decimal number. Range checks
// are left to bind.BindAndListen.
func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", s, bind.InvalidArgument)
	}
	return port, nil
}

func newLogger(verbosity string, w io.Writer) zerolog.Logger {
	switch verbosity {
	case "dev":
		return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
			Level(zerolog.DebugLevel).With().Timestamp().Logger()
	case "none":
		return zerolog.Nop()
	default:
		return zerolog.New(w).Level(zerolog.InfoLevel).With().Timestamp().Logger()
	}
}

// serve binds every configured socket, runs the servers and blocks until ctx
// is done or a server fails.
func serve(ctx context.Context, conf *config, port int, logger zerolog.Logger, stdout io.Writer) error {
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	binder := bind.NewBinder()
	binder.Metrics = bind.NewMetrics(promReg)
	binder.Logger = logger.With().Str("component", "bind").Logger()

	reg := registry.New()
	defer func() {
		if err := reg.CloseAll(); err != nil {
			logger.Error().Err(err).Msg("failed to close listening sockets")
		}
	}()

	mainSock, err := binder.BindAndListen(bind.BindRequest{Address: conf.Address, Port: port, Family: conf.Family}, conf.Backlog)
	if err != nil {
		return err
	}
	reg.Add("main", mainSock)

	var statusSock, healthSock *bind.ListeningSocket
	if conf.Status.Activate {
		statusSock, err = binder.BindAndListen(sideRequest(conf, conf.Status), conf.Backlog)
		if err != nil {
			return fmt.Errorf("status server: %w", err)
		}
		reg.Add("status", statusSock)
	}
	if conf.Health.Activate {
		healthSock, err = binder.BindAndListen(sideRequest(conf, conf.Health), conf.Backlog)
		if err != nil {
			return fmt.Errorf("health server: %w", err)
		}
		reg.Add("health", healthSock)
	}

	fmt.Fprintf(stdout, "Listening on port %d\n", mainSock.Port())

	errs := make(chan error, 3)

	handlerLogger := logger.With().Str("component", "acceptor").Logger()
	acc := acceptor.NewServer(acceptor.RecoverHandler(acceptor.LoggingHandler(acceptor.Discard, handlerLogger), handlerLogger))
	acc.Logger = handlerLogger
	go func() {
		if err := acc.Serve(mainSock); !errors.Is(err, acceptor.ErrServerClosed) {
			errs <- fmt.Errorf("accept loop: %w", err)
		}
	}()

	var statusSrv *httpsrv.Server
	if statusSock != nil {
		statusSrv = httpsrv.NewServer(reg, promReg)
		statusSrv.Logger = logger.With().Str("component", "http").Logger()
		logger.Info().Int("port", statusSock.Port()).Msg("status server listening")
		go func() {
			if err := statusSrv.Serve(statusSock); err != nil {
				errs <- fmt.Errorf("status server: %w", err)
			}
		}()
	}

	var healthSrv *grpcsrv.Server
	if healthSock != nil {
		healthSrv = grpcsrv.NewServer(reg)
		healthSrv.Logger = logger.With().Str("component", "grpc").Logger()
		logger.Info().Int("port", healthSock.Port()).Msg("health server listening")
		go func() {
			if err := healthSrv.Serve(healthSock); err != nil {
				errs <- fmt.Errorf("health server: %w", err)
			}
		}()
	}

	var runErr error
	ticker := time.NewTicker(healthRefreshInterval)
	defer ticker.Stop()
Loop:
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down")
			break Loop
		case runErr = <-errs:
			logger.Error().Err(runErr).Msg("server failed, shutting down")
			break Loop
		case <-ticker.C:
			if healthSrv != nil {
				healthSrv.Refresh()
			}
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.ShutdownTimeout)
	defer cancel()
	if err := acc.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("accept loop shutdown incomplete")
	}
	if statusSrv != nil {
		if err := statusSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("status server shutdown incomplete")
		}
	}
	if healthSrv != nil {
		if err := healthSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("health server shutdown incomplete")
		}
	}
	return runErr
}

func sideRequest(conf *config, lc listenerConf) bind.BindRequest {
	if lc.OnLocalhost {
		return bind.BindRequest{Address: "127.0.0.1", Port: lc.Port}
	}
	return bind.BindRequest{Address: conf.Address, Port: lc.Port, Family: conf.Family}
}
