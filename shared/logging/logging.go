package logging

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	_loggerLock sync.Mutex
	_loggers    = make(map[string]*logrus.Logger)
	_level      = logrus.InfoLevel
)

// SetLevelFromString applies the level to all existing loggers and to loggers
// created afterwards. Unknown level names keep the current level.
func SetLevelFromString(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return
	}
	_loggerLock.Lock()
	defer _loggerLock.Unlock()
	_level = lvl
	for _, l := range _loggers {
		l.SetLevel(lvl)
	}
}

func NewLogger(loggerName string) *logrus.Logger {
	_loggerLock.Lock()
	defer _loggerLock.Unlock()

	if logger, ok := _loggers[loggerName]; ok {
		return logger
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(_level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	_loggers[loggerName] = logger
	return logger
}
