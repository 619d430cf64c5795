package observability

import (
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
)

// Logger profiles accepted by logging.profile.
const (
	ProfileSimple     = "simple"
	ProfileStructured = "structured"
)

var (
	// CLILogger serves one-shot commands.
	CLILogger *logging.Logger

	// ServerLogger serves `serve`: request logs, session events, error envelopes.
	ServerLogger *logging.Logger
)

// InitCLILogger builds the console logger used by every command.
func InitCLILogger(serviceName string, verbose bool) {
	logger := mustLogger(logging.NewCLI(serviceName))
	if verbose {
		logger.SetLevel(logging.DEBUG)
	}
	CLILogger = logger
}

// InitServeLogger sets ServerLogger from logging.profile and logging.level.
func InitServeLogger(serviceName, profile, logLevel string) {
	ServerLogger = mustLogger(logging.New(loggerConfig(serviceName, profile, logLevel, "")))
}

// InitServerLogger sets a structured ServerLogger. namespace, when given, is stamped
// on every entry so logs line up with the metrics namespace.
func InitServerLogger(serviceName string, logLevel string, namespace ...string) {
	ns := ""
	if len(namespace) > 0 {
		ns = namespace[0]
	}
	ServerLogger = mustLogger(logging.New(loggerConfig(serviceName, ProfileStructured, logLevel, ns)))
}

// EngineLogger returns the logger search components should log through: the server
// logger when serving, otherwise the CLI logger. It may be nil.
func EngineLogger() *logging.Logger {
	if ServerLogger != nil {
		return ServerLogger
	}
	return CLILogger
}

// loggerConfig maps a profile name onto a gofulmen logger config. Unknown profiles
// get the structured JSON logger.
func loggerConfig(serviceName, profile, logLevel, namespace string) *logging.LoggerConfig {
	console := func(format string) []logging.SinkConfig {
		return []logging.SinkConfig{{
			Type:    "console",
			Format:  format,
			Console: &logging.ConsoleSinkConfig{Stream: "stderr"},
		}}
	}

	if strings.EqualFold(strings.TrimSpace(profile), ProfileSimple) {
		return &logging.LoggerConfig{
			Profile:      logging.ProfileSimple,
			DefaultLevel: parseLogLevel(logLevel),
			Service:      serviceName,
			Environment:  "development",
			Sinks:        console("console"),
		}
	}

	staticFields := map[string]any{}
	if namespace != "" {
		staticFields["namespace"] = namespace
	}
	return &logging.LoggerConfig{
		Profile:      logging.ProfileStructured,
		DefaultLevel: parseLogLevel(logLevel),
		Service:      serviceName,
		Environment:  "production",
		StaticFields: staticFields,
		Middleware: []logging.MiddlewareConfig{
			{Name: "correlation", Enabled: true, Order: 100, Config: map[string]any{}},
		},
		Sinks:            console("json"),
		EnableCaller:     true,
		EnableStacktrace: true,
	}
}

func parseLogLevel(levelStr string) string {
	switch level := strings.ToUpper(strings.TrimSpace(levelStr)); level {
	case "TRACE", "DEBUG", "INFO", "ERROR":
		return level
	case "WARN", "WARNING":
		return "WARN"
	default:
		return "INFO"
	}
}

// fatal is swapped in tests.
var fatal = func(code foundry.ExitCode, msg string, err error) {
	fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
	if info, ok := foundry.GetExitCodeInfo(code); ok {
		fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
	}
	os.Exit(int(code))
}

// mustLogger exits with ExitConfigInvalid when a logger cannot be built; nothing can
// report the failure otherwise.
func mustLogger(logger *logging.Logger, err error) *logging.Logger {
	if err != nil {
		fatal(foundry.ExitConfigInvalid, "Failed to initialize logger", err)
	}
	return logger
}
