package kfmt

// Level controls which Logger messages reach the output sink.
type Level uint8

// Supported log levels, from least to most verbose.
const (
	LevelOff Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

var (
	logLevel = LevelInfo

	logPrefix [48]byte
	logWriter lineWriter

	levelNames = [...]string{
		LevelOff:   "OFF",
		LevelError: "ERROR",
		LevelWarn:  "WARN",
		LevelInfo:  "INFO",
		LevelDebug: "DEBUG",
		LevelTrace: "TRACE",
	}
)

// SetLogLevel sets the most verbose level that will be emitted.
func SetLogLevel(l Level) {
	if l > LevelTrace {
		l = LevelTrace
	}
	logLevel = l
}

// LogLevel returns the active log level.
func LogLevel() Level { return logLevel }

// ParseLevel maps a case-insensitive level name to a Level. The empty string
// maps to LevelInfo.
func ParseLevel(name string) (Level, bool) {
	if name == "" {
		return LevelInfo, true
	}

	for lvl, lvlName := range levelNames {
		if equalFold(name, lvlName) {
			return Level(lvl), true
		}
	}
	return LevelInfo, false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'a' && ca <= 'z' {
			ca -= 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Logger emits level-tagged messages for a kernel module. Every line of a
// message is rendered as "[LEVEL][module] text".
type Logger struct {
	Module string
}

// Errorf logs a message at LevelError.
func (l Logger) Errorf(format string, args ...interface{}) { l.logf(LevelError, format, args...) }

// Warnf logs a message at LevelWarn.
func (l Logger) Warnf(format string, args ...interface{}) { l.logf(LevelWarn, format, args...) }

// Infof logs a message at LevelInfo.
func (l Logger) Infof(format string, args ...interface{}) { l.logf(LevelInfo, format, args...) }

// Debugf logs a message at LevelDebug.
func (l Logger) Debugf(format string, args ...interface{}) { l.logf(LevelDebug, format, args...) }

// Tracef logs a message at LevelTrace.
func (l Logger) Tracef(format string, args ...interface{}) { l.logf(LevelTrace, format, args...) }

func (l Logger) logf(lvl Level, format string, args ...interface{}) {
	if lvl == LevelOff || lvl > logLevel {
		return
	}

	// The prefix is rendered into a static buffer as the heap may not be
	// available yet.
	n := copy(logPrefix[:], "[")
	n += copy(logPrefix[n:], levelNames[lvl])
	n += copy(logPrefix[n:], "][")
	n += copy(logPrefix[n:], l.Module)
	n += copy(logPrefix[n:], "] ")

	logWriter = lineWriter{sink: sinkWriter{}, prefix: logPrefix[:n]}
	Fprintf(&logWriter, format, args...)
	Fprintf(outputSink, "\n")
}

// sinkWriter forwards writes to the active output sink or the early print
// buffer.
type sinkWriter struct{}

func (sinkWriter) Write(p []byte) (int, error) {
	doWrite(outputSink, p)
	return len(p), nil
}
