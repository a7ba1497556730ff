package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog for structured logging and implements
// simcore.SimLogger's semantic lifecycle methods.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a new structured logger.
func NewLogger(service, version string, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339

	logger := zerolog.New(output).With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Str("host", getHostname()).
		Logger()

	return &Logger{
		logger: logger,
	}
}

// WithRun adds run_id context to logger.
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{
		logger: l.logger.With().Str("run_id", runID).Logger(),
	}
}

// WithNode adds node context to logger.
func (l *Logger) WithNode(node string) *Logger {
	return &Logger{
		logger: l.logger.With().Str("node", node).Logger(),
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

// Info logs an info message.
func (l *Logger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

// Error logs an error message.
func (l *Logger) Error(err error, msg string) {
	l.logger.Error().Err(err).Msg(msg)
}

// Fatal logs a fatal message and exits.
func (l *Logger) Fatal(err error, msg string) {
	l.logger.Fatal().Err(err).Msg(msg)
}

// PolicyFired logs a policy entry firing at its source node.
func (l *Logger) PolicyFired(chunkID, src string, numPackets int) {
	l.logger.Debug().
		Str("chunk_id", chunkID).
		Str("src", src).
		Int("num_packets", numPackets).
		Msg("policy fired")
}

// ChunkArrived logs a chunk becoming fully owned at a node.
func (l *Logger) ChunkArrived(chunkID, node string) {
	l.logger.Debug().
		Str("chunk_id", chunkID).
		Str("node", node).
		Msg("chunk fully owned")
}

// PacketForwarded logs a packet being enqueued onto the next hop's Port.
func (l *Logger) PacketForwarded(chunkID string, seq int, node, next string) {
	l.logger.Debug().
		Str("chunk_id", chunkID).
		Int("seq", seq).
		Str("node", node).
		Str("next", next).
		Msg("packet forwarded")
}

// EngineError logs a run-aborting engine error.
func (l *Logger) EngineError(err error) {
	l.logger.Error().Err(err).Msg("simulation engine error")
}

// SimulationStarted logs the start of a submitted run.
func (l *Logger) SimulationStarted(runID string) {
	l.logger.Info().Str("run_id", runID).Msg("simulation started")
}

// SimulationCompleted logs the completion of a submitted run.
func (l *Logger) SimulationCompleted(runID string, duration time.Duration) {
	l.logger.Info().
		Str("run_id", runID).
		Float64("duration_seconds", duration.Seconds()).
		Msg("simulation completed")
}

// SimulationFailed logs a failed run.
func (l *Logger) SimulationFailed(runID string, err error) {
	l.logger.Error().
		Str("run_id", runID).
		Err(err).
		Msg("simulation failed")
}

// Helper function to get hostname.
func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}
