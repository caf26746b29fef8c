package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/crytic/chainfixture/logging/colors"
	"github.com/rs/zerolog"
)

// GlobalLogger is disabled by default and is configured by the CLI once the project configuration is read. Each
// package derives its own sub-logger from it.
var GlobalLogger = NewLogger(zerolog.Disabled, false)

// Logger logs events to an arbitrary set of writers in structured or unstructured form, and optionally to console
// with custom coloring.
type Logger struct {
	// level describes the log level
	level zerolog.Level

	// multiLogger outputs logs to every writer in writers.
	multiLogger zerolog.Logger

	// consoleLogger outputs colorized, unstructured logs to stdout. It is kept separate from multiLogger so console
	// formatting can differ from file formatting.
	consoleLogger zerolog.Logger

	// context holds the key-value pairs attached by NewSubLogger so they survive writer changes.
	context []contextField

	// writers is the list of io.Writer objects the multiLogger fans out to.
	writers []io.Writer

	// writersLock guards writers and the multiLogger rebuilt from it.
	writersLock *sync.Mutex
}

// contextField is a key-value pair attached to every event of a sub-logger.
type contextField struct {
	key   string
	value string
}

// LogFormat describes what format to log in
type LogFormat string

const (
	// STRUCTURED describes that logging should be done in structured JSON format
	STRUCTURED LogFormat = "structured"
	// UNSTRUCTURED describes that logging should be done in an unstructured format
	UNSTRUCTURED LogFormat = "unstructured"
)

// StructuredLogInfo describes a key-value mapping that can be used to log structured data
type StructuredLogInfo map[string]any

// NewLogger creates a new Logger with a specific log level. The Logger can output to console, if enabled, and to any
// number of io.Writer channels.
func NewLogger(level zerolog.Level, consoleEnabled bool, writers ...io.Writer) *Logger {
	l := &Logger{
		level:       level,
		writers:     writers,
		writersLock: &sync.Mutex{},
	}
	l.rebuildMultiLogger()

	// The console logger is disabled unless requested, so it is never nil.
	l.consoleLogger = zerolog.New(os.Stdout).Level(zerolog.Disabled)
	if consoleEnabled {
		consoleWriter := setupDefaultFormatting(zerolog.ConsoleWriter{Out: os.Stdout}, level)
		l.consoleLogger = zerolog.New(consoleWriter).Level(level)
	}
	return l
}

// NewSubLogger creates a new Logger with unique context in the form of a key-value pair. Each package is expected to
// have its own sub-logger so logs are "grep-able" by module.
func (l *Logger) NewSubLogger(key string, value string) *Logger {
	l.writersLock.Lock()
	defer l.writersLock.Unlock()

	context := make([]contextField, 0, len(l.context)+1)
	context = append(context, l.context...)
	context = append(context, contextField{key: key, value: value})
	return &Logger{
		level:         l.level,
		multiLogger:   l.multiLogger.With().Str(key, value).Logger(),
		consoleLogger: l.consoleLogger.With().Str(key, value).Logger(),
		context:       context,
		writers:       l.writers,
		writersLock:   l.writersLock,
	}
}

// AddWriter adds a writer to the list of channels where log output will be sent. Duplicate writers are ignored.
func (l *Logger) AddWriter(writer io.Writer, format LogFormat) {
	l.writersLock.Lock()
	defer l.writersLock.Unlock()

	for _, w := range l.writers {
		if sameWriter(w, writer) {
			return
		}
	}

	// Unstructured output is wrapped in a console writer without ANSI coloring.
	if format == UNSTRUCTURED {
		writer = zerolog.ConsoleWriter{Out: writer, NoColor: true}
	}
	l.writers = append(l.writers, writer)
	l.rebuildMultiLogger()
}

// RemoveWriter removes a writer from the list of writers that the logger manages. If the writer does not exist, this
// is a no-op.
func (l *Logger) RemoveWriter(writer io.Writer) {
	l.writersLock.Lock()
	defer l.writersLock.Unlock()

	for i, w := range l.writers {
		if sameWriter(w, writer) {
			l.writers = append(l.writers[:i], l.writers[i+1:]...)
			l.rebuildMultiLogger()
			return
		}
	}
}

// sameWriter reports whether w is writer, looking through the console writer that wraps unstructured outputs.
func sameWriter(w io.Writer, writer io.Writer) bool {
	if consoleWriter, ok := w.(zerolog.ConsoleWriter); ok {
		return consoleWriter.Out == writer
	}
	return w == writer
}

// rebuildMultiLogger recreates the multi logger over the current writers. The caller must hold writersLock or own
// the Logger exclusively.
func (l *Logger) rebuildMultiLogger() {
	if len(l.writers) == 0 {
		l.multiLogger = zerolog.New(io.Discard).Level(zerolog.Disabled)
		return
	}
	ctx := zerolog.New(zerolog.MultiLevelWriter(l.writers...)).Level(l.level).With().Timestamp()
	for _, field := range l.context {
		ctx = ctx.Str(field.key, field.value)
	}
	l.multiLogger = ctx.Logger()
}

// Level returns the log level of the Logger
func (l *Logger) Level() zerolog.Level {
	return l.level
}

// SetLevel updates the log level of the Logger
func (l *Logger) SetLevel(level zerolog.Level) {
	l.level = level
	l.multiLogger = l.multiLogger.Level(level)
	l.consoleLogger = l.consoleLogger.Level(level)
}

// Trace logs a trace event
func (l *Logger) Trace(args ...any) {
	l.log(zerolog.TraceLevel, args...)
}

// Debug logs a debug event
func (l *Logger) Debug(args ...any) {
	l.log(zerolog.DebugLevel, args...)
}

// Info logs an info event
func (l *Logger) Info(args ...any) {
	l.log(zerolog.InfoLevel, args...)
}

// Warn logs a warning event
func (l *Logger) Warn(args ...any) {
	l.log(zerolog.WarnLevel, args...)
}

// Error logs an error event
func (l *Logger) Error(args ...any) {
	l.log(zerolog.ErrorLevel, args...)
}

// Panic logs a panic event and then panics
func (l *Logger) Panic(args ...any) {
	l.log(zerolog.PanicLevel, args...)
}

// log builds the console and multi-writer events for the given level and sends them off.
func (l *Logger) log(level zerolog.Level, args ...any) {
	consoleMsg, multiMsg, err, info := buildMsgs(args...)

	consoleLog := l.consoleLogger.WithLevel(level)
	multiLog := l.multiLogger.WithLevel(level)

	// Stack traces are attached at debug level and below, and always for panics.
	stack := l.level <= zerolog.DebugLevel || level == zerolog.PanicLevel
	chainError(consoleLog, multiLog, err, stack)
	chainStructuredLogInfoAndMsgs(consoleLog, multiLog, info, consoleMsg, multiMsg)

	// WithLevel does not panic on its own, unlike zerolog's Panic().
	if level == zerolog.PanicLevel {
		panic(multiMsg)
	}
}

// buildMsgs takes a variadic list of arguments and returns a colorized string for console output, a plain string for
// structured output and, optionally, an error and a StructuredLogInfo object found among the arguments.
func buildMsgs(args ...any) (string, string, error, StructuredLogInfo) {
	if len(args) == 0 {
		return "", "", nil, nil
	}

	colorCtx := colors.Reset
	consoleOutput := make([]string, 0, len(args))
	fileOutput := make([]string, 0, len(args))
	var info StructuredLogInfo
	var err error

	for _, arg := range args {
		switch t := arg.(type) {
		case colors.ColorFunc:
			// Color functions switch the color context for the arguments that follow
			colorCtx = t
		case StructuredLogInfo:
			// Only one structured log info is kept per message
			info = t
		case error:
			// Only one error is kept per message
			err = t
		default:
			consoleOutput = append(consoleOutput, colorCtx(t))
			fileOutput = append(fileOutput, fmt.Sprintf("%v", t))
		}
	}

	return strings.Join(consoleOutput, ""), strings.Join(fileOutput, ""), err, info
}

// chainError attaches err to both events, with a stack trace if requested. A nil err is a no-op in zerolog.
func chainError(consoleLog *zerolog.Event, multiLog *zerolog.Event, err error, stack bool) {
	if stack {
		consoleLog.Stack()
		multiLog.Stack()
	}
	consoleLog.Err(err)
	multiLog.Err(err)
}

// chainStructuredLogInfoAndMsgs attaches info to both events and sends them to their respective channels.
func chainStructuredLogInfoAndMsgs(consoleLog *zerolog.Event, multiLog *zerolog.Event, info StructuredLogInfo, consoleMsg string, multiMsg string) {
	if info != nil {
		consoleLog.Any("info", info)
		multiLog.Any("info", info)
	}

	// The multi logger message is deferred so a panicking console write still reaches every channel.
	defer multiLog.Msg(multiMsg)
	consoleLog.Msg(consoleMsg)
}

// setupDefaultFormatting updates the console writer's formatting to the chainfixture standard
func setupDefaultFormatting(writer zerolog.ConsoleWriter, level zerolog.Level) zerolog.ConsoleWriter {
	// No timestamps on console
	writer.FormatTimestamp = func(i any) string {
		return ""
	}

	writer.FormatLevel = func(i any) string {
		levelStr, _ := i.(string)
		parsed, err := zerolog.ParseLevel(levelStr)
		if err != nil {
			return levelStr
		}

		switch parsed {
		case zerolog.TraceLevel:
			return colors.CyanBold(zerolog.LevelTraceValue)
		case zerolog.DebugLevel:
			return colors.BlueBold(zerolog.LevelDebugValue)
		case zerolog.InfoLevel:
			return colors.GreenBold(colors.LEFT_ARROW)
		case zerolog.WarnLevel:
			return colors.YellowBold(zerolog.LevelWarnValue)
		case zerolog.ErrorLevel:
			return colors.RedBold(zerolog.LevelErrorValue)
		case zerolog.FatalLevel:
			return colors.RedBold(zerolog.LevelFatalValue)
		case zerolog.PanicLevel:
			return colors.RedBold(zerolog.LevelPanicValue)
		default:
			return levelStr
		}
	}

	// Above debug level the module field is noise on console
	if level > zerolog.DebugLevel {
		writer.FieldsExclude = []string{"module"}
	}

	return writer
}
