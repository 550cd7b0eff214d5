package logger

import (
	"log/slog"
	"os"
)

// serviceName tags every record so a shared log pipeline can separate
// the gateway's output from the other services it talks to.
const serviceName = "iam-gateway"

// Setup configures the global logger based on the environment and
// stamps every record with the service name. It returns the logger
// instance, but also sets it as the default global logger.
func Setup(env string) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if env == "production" {
		// JSON for machine parsing (Datadog, Splunk, etc.)
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		// Text for human readability in development
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler).With("service", serviceName)
	slog.SetDefault(log)

	return log
}

// Component returns a child logger tagged with the originating
// subsystem (e.g. "authz", "quota"), used by components that want
// their records distinguishable without threading a field through
// every call site.
func Component(log *slog.Logger, name string) *slog.Logger {
	return log.With("component", name)
}
