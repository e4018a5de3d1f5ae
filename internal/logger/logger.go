package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

var (
	mu           sync.RWMutex
	outWriter    io.Writer = os.Stdout
	errWriter    io.Writer = os.Stderr
	outLogger    zerolog.Logger
	errLogger    zerolog.Logger
	currentLevel = zerolog.DebugLevel
	enableColors = true
)

// ANSI color codes
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"

	ColorRed     = "\033[31m"
	ColorGreen   = "\033[32m"
	ColorYellow  = "\033[33m"
	ColorBlue    = "\033[34m"
	ColorMagenta = "\033[35m"
	ColorCyan    = "\033[36m"
	ColorWhite   = "\033[37m"
	ColorGray    = "\033[90m"
)

// component color mapping for consistent visual organization
var componentColors = map[string]string{
	"PARSER":   ColorCyan,
	"TIMELINE": ColorBlue,
	"QUORUM":   ColorMagenta,
	"EXPORTER": ColorGreen,
	"METRICS":  ColorYellow,
	"SYSTEM":   ColorWhite,
	"ERROR":    ColorRed,
}

func init() {
	SetOutput(os.Stdout, os.Stderr)
}

// SetOutput redirects regular and error output. Used by tests and the CLI.
func SetOutput(out, errOut io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	outWriter, errWriter = out, errOut
	outLogger = newLogger(out)
	errLogger = newLogger(errOut)
}

func newLogger(w io.Writer) zerolog.Logger {
	cw := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "2006/01/02 15:04:05.000000",
		NoColor:    !enableColors,
	}
	return zerolog.New(cw).With().Timestamp().Logger()
}

func SetLogLevel(level string) error {
	var lvl zerolog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = zerolog.DebugLevel
	case "info":
		lvl = zerolog.InfoLevel
	case "warning", "warn":
		lvl = zerolog.WarnLevel
	case "error":
		lvl = zerolog.ErrorLevel
	default:
		return eris.Errorf("invalid log level: %s", level)
	}
	mu.Lock()
	currentLevel = lvl
	mu.Unlock()
	return nil
}

func SetColorsEnabled(enabled bool) {
	mu.Lock()
	enableColors = enabled
	out, errOut := outWriter, errWriter
	mu.Unlock()
	SetOutput(out, errOut)
}

func getComponentColor(component string) string {
	if !enableColors {
		return ""
	}

	comp := strings.ToUpper(component)
	for category, color := range componentColors {
		if strings.Contains(comp, category) {
			return color
		}
	}
	return ColorGray
}

func formatComponent(component string) string {
	if component == "" {
		return ""
	}

	color := getComponentColor(component)
	reset := ""
	if enableColors {
		reset = ColorReset
	}

	// format: [COMPONENT]
	return fmt.Sprintf("%s[%s]%s ", color, strings.ToUpper(component), reset)
}

func logWithLevel(level zerolog.Level, component, format string, v ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()

	if level < currentLevel {
		return
	}

	l := outLogger
	if level >= zerolog.ErrorLevel {
		l = errLogger
	}
	l.WithLevel(level).Msg(formatComponent(component) + fmt.Sprintf(format, v...))
}

func Debug(format string, v ...interface{}) {
	logWithLevel(zerolog.DebugLevel, "", format, v...)
}

func Info(format string, v ...interface{}) {
	logWithLevel(zerolog.InfoLevel, "", format, v...)
}

func Warning(format string, v ...interface{}) {
	logWithLevel(zerolog.WarnLevel, "", format, v...)
}

func Error(format string, v ...interface{}) {
	logWithLevel(zerolog.ErrorLevel, "", format, v...)
}

// component-aware logging functions
func DebugComponent(component, format string, v ...interface{}) {
	logWithLevel(zerolog.DebugLevel, component, format, v...)
}

func InfoComponent(component, format string, v ...interface{}) {
	logWithLevel(zerolog.InfoLevel, component, format, v...)
}

func WarningComponent(component, format string, v ...interface{}) {
	logWithLevel(zerolog.WarnLevel, component, format, v...)
}

func ErrorComponent(component, format string, v ...interface{}) {
	logWithLevel(zerolog.ErrorLevel, component, format, v...)
}
