package logger

import (
	"sync"
)

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
	registry     = map[string]*Logger{}
)

// Init replaces the global logger using cfg.
func Init(cfg Config) {
	SetGlobal(New(&cfg, ""))
}

// SetGlobal sets the global logger instance and drops derived component loggers.
func SetGlobal(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
	registry = map[string]*Logger{}
}

// Global returns the global logger, creating one from the environment if needed.
func Global() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = NewFromEnv("")
	}
	return globalLogger
}

// Register stores a named logger.
func Register(name string, l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	registry[name] = l
}

// Get retrieves a named logger. Unregistered names get the global logger
// tagged with the requested component.
func Get(name string) *Logger {
	globalMu.RLock()
	l, ok := registry[name]
	globalMu.RUnlock()
	if ok {
		return l
	}
	return Global().WithComponent(name)
}
