package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/certxg/knime-scripting/internal/ctxlog"
	"github.com/certxg/knime-scripting/internal/enginecmd"
	"github.com/certxg/knime-scripting/internal/matlab"
	"github.com/certxg/knime-scripting/internal/matlab/pool"
	"github.com/certxg/knime-scripting/internal/rpc"
)

// main is the entrypoint for the calculation server. It exposes a local
// MATLAB session pool to remote workbench clients.
func main() {
	portFlag := flag.Int("port", 1198, "TCP port to listen on.")
	registryFlag := flag.String("registry", rpc.DefaultRegistry, "Registry name clients must address.")
	sessionsFlag := flag.Int("sessions", 1, "Number of MATLAB sessions in the pool.")
	executableFlag := flag.String("executable", "matlab", "MATLAB executable to launch.")
	argsFlag := flag.String("args", "-nodisplay -nosplash -nodesktop", "Arguments passed to the MATLAB executable.")
	logLevelFlag := flag.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevelFlag)); err != nil {
		fmt.Fprintln(os.Stderr, "invalid log-level:", *logLevelFlag)
		os.Exit(2)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(logger, *portFlag, *registryFlag, *sessionsFlag, *executableFlag, *argsFlag); err != nil {
		logger.Error("Server terminated.", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, port int, registry string, sessions int, executable, args string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = ctxlog.WithLogger(ctx, logger)

	spec := enginecmd.Spec{Prog: executable, Args: strings.Fields(args)}
	ctrl := pool.NewController(sessions, spec)
	defer ctrl.Close()

	runner := &matlab.PoolRunner{Ctrl: matlab.PoolController{C: ctrl}}
	server := rpc.NewServer(port, registry, runner)

	logger.Info("Calculation server starting.",
		"port", port, "registry", registry, "sessions", sessions)
	return server.Serve(ctx)
}
