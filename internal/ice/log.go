package ice

import "github.com/pion/logging"

// loggerScope is the pion/logging scope name used for every logger this
// package creates, so deployments can tune verbosity with the standard
// pion LOGGING env var the same way they would for any other pion
// component.
const loggerScope = "ice"

func newLogger(factory logging.LoggerFactory) logging.LeveledLogger {
	if factory == nil {
		factory = logging.NewDefaultLoggerFactory()
	}
	return factory.NewLogger(loggerScope)
}
