package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const isWindows = runtime.GOOS == "windows"

const (
	Reset       = "\033[0m"
	Red         = "\033[31m"
	Green       = "\033[32m"
	Magenta     = "\033[35m"
	BlueBold    = "\033[34;1m"
	MagentaBold = "\033[35;1m"
	RedBold     = "\033[31;1m"
	YellowBold  = "\033[33;1m"
	WhiteBold   = "\033[37;1m"
	CyanBold    = "\033[36;1m"
	Gray        = "\033[1;90m"
	Purple      = "\u001b[38;5;200m"
)

type levelStyle struct {
	name    string
	level   string
	message string
}

var styles = map[LogLevel]levelStyle{
	LevelTrace: {"TRACE", CyanBold, Gray},
	LevelDebug: {"DEBUG", BlueBold, Green},
	LevelInfo:  {"INFO", YellowBold, WhiteBold},
	LevelWarn:  {"WARN", MagentaBold, Magenta},
	LevelError: {"ERROR", RedBold, Red},
}

type consoleLogger struct {
	out      io.Writer
	mu       *sync.Mutex
	colors   bool
	prefixes []string
	metadata map[string]interface{}
	logLevel LogLevel
}

var _ Logger = (*consoleLogger)(nil)

func (c *consoleLogger) clone() *consoleLogger {
	return &consoleLogger{
		out:      c.out,
		mu:       c.mu,
		colors:   c.colors,
		prefixes: slices.Clone(c.prefixes),
		metadata: copyMetadata(c.metadata, nil),
		logLevel: c.logLevel,
	}
}

func (c *consoleLogger) color(val string) string {
	if !c.colors {
		return ""
	}
	return val
}

// WithPrefix will return a new logger with a prefix prepended to the message
func (c *consoleLogger) WithPrefix(prefix string) Logger {
	l := c.clone()
	if !slices.Contains(l.prefixes, prefix) {
		l.prefixes = append(l.prefixes, prefix)
	}
	return l
}

func (c *consoleLogger) With(metadata map[string]interface{}) Logger {
	l := c.clone()
	l.metadata = copyMetadata(c.metadata, metadata)
	return l
}

func (c *consoleLogger) IsLevelEnabled(level LogLevel) bool {
	return level >= c.logLevel && level < LevelNone
}

func (c *consoleLogger) log(level LogLevel, msg string, args ...interface{}) {
	if !c.IsLevelEnabled(level) {
		return
	}
	style := styles[level]
	var prefix, suffix string
	if len(c.prefixes) > 0 {
		prefix = c.color(Purple) + strings.Join(c.prefixes, " ") + c.color(Reset) + " "
	}
	if len(c.metadata) > 0 {
		if buf, err := json.Marshal(c.metadata); err == nil {
			suffix = " " + c.color(Gray) + string(buf) + c.color(Reset)
		}
	}
	levelText := c.color(style.level) + fmt.Sprintf("[%-5s]", style.name) + c.color(Reset)
	message := c.color(style.message) + fmt.Sprintf(msg, args...) + c.color(Reset)
	line := fmt.Sprintf("%s %s %s%s%s\n", time.Now().Format(time.RFC3339), levelText, prefix, message, suffix)
	c.mu.Lock()
	_, _ = io.WriteString(c.out, line)
	c.mu.Unlock()
}

func (c *consoleLogger) Trace(msg string, args ...interface{}) { c.log(LevelTrace, msg, args...) }
func (c *consoleLogger) Debug(msg string, args ...interface{}) { c.log(LevelDebug, msg, args...) }
func (c *consoleLogger) Info(msg string, args ...interface{})  { c.log(LevelInfo, msg, args...) }
func (c *consoleLogger) Warn(msg string, args ...interface{})  { c.log(LevelWarn, msg, args...) }
func (c *consoleLogger) Error(msg string, args ...interface{}) { c.log(LevelError, msg, args...) }

func (c *consoleLogger) Fatal(msg string, args ...interface{}) {
	c.log(LevelError, msg, args...)
	os.Exit(1)
}

// NewConsoleLogger returns a Logger writing to stderr. Without an explicit
// level the level comes from CACHESPACE_LOG_LEVEL.
func NewConsoleLogger(levels ...LogLevel) Logger {
	level := GetLevelFromEnv()
	if len(levels) > 0 {
		level = levels[0]
	}
	fd := os.Stderr.Fd()
	colors := !isWindows && os.Getenv("TERM") != "dumb" &&
		(isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd))
	return NewWriterLogger(os.Stderr, level, colors)
}

// NewWriterLogger returns a console-formatted Logger writing to out.
func NewWriterLogger(out io.Writer, level LogLevel, colors bool) Logger {
	return &consoleLogger{
		out:      out,
		mu:       &sync.Mutex{},
		colors:   colors,
		logLevel: level,
	}
}

type discardLogger struct{}

func (discardLogger) With(map[string]interface{}) Logger { return discardLogger{} }
func (discardLogger) WithPrefix(string) Logger           { return discardLogger{} }
func (discardLogger) Trace(string, ...interface{})       {}
func (discardLogger) Debug(string, ...interface{})       {}
func (discardLogger) Info(string, ...interface{})        {}
func (discardLogger) Warn(string, ...interface{})        {}
func (discardLogger) Error(string, ...interface{})       {}
func (discardLogger) Fatal(string, ...interface{})       { os.Exit(1) }
func (discardLogger) IsLevelEnabled(LogLevel) bool       { return false }

// NewDiscardLogger returns a Logger that drops everything.
func NewDiscardLogger() Logger {
	return discardLogger{}
}
