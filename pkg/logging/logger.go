package logging

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"sync"

	"github.com/fatih/color"
)

// writer is an io.Writer that splits its input stream into lines and writes
// those lines to an underlying logging callback.
type writer struct {
	// callback is the logging callback.
	callback func(string)
	// buffer is any incomplete line fragment left over from a previous write.
	buffer []byte
}

// trimCarriageReturn trims any single trailing carriage return from the end
// of a byte slice.
func trimCarriageReturn(buffer []byte) []byte {
	if len(buffer) > 0 && buffer[len(buffer)-1] == '\r' {
		return buffer[:len(buffer)-1]
	}
	return buffer
}

// Write implements io.Writer.Write.
func (w *writer) Write(buffer []byte) (int, error) {
	w.buffer = append(w.buffer, buffer...)

	var processed int
	remaining := w.buffer
	for {
		index := bytes.IndexByte(remaining, '\n')
		if index == -1 {
			break
		}
		w.callback(string(trimCarriageReturn(remaining[:index])))
		processed += index + 1
		remaining = remaining[index+1:]
	}

	if processed > 0 {
		leftover := len(w.buffer) - processed
		if leftover > 0 {
			copy(w.buffer[:leftover], w.buffer[processed:])
		}
		w.buffer = w.buffer[:leftover]
	}

	return len(buffer), nil
}

// Logger is the main logger type. It filters output by level and writes
// formatted lines to an underlying io.Writer. It has the novel property that
// it still functions if nil, in which case it discards everything written to
// it. It is safe for concurrent usage.
type Logger struct {
	// mutex protects output serialization across levels and subloggers that
	// share the same underlying standard logger.
	mutex *sync.Mutex
	// output is the standard library logger used to format and write output.
	output *log.Logger
	// level is the maximum level that will be logged.
	level Level
	// prefix is any name prefix specified for the logger.
	prefix string
}

// NewLogger creates a new root logger that writes output at the specified
// level to the specified writer.
func NewLogger(level Level, writer io.Writer) *Logger {
	return &Logger{
		mutex:  &sync.Mutex{},
		output: log.New(writer, "", log.LstdFlags),
		level:  level,
	}
}

// Level returns the logger's configured level. If the logger is nil, it
// returns LevelDisabled.
func (l *Logger) Level() Level {
	if l == nil {
		return LevelDisabled
	}
	return l.level
}

// Sublogger creates a new sublogger with the specified name. The sublogger
// shares the parent's level, output, and write serialization.
func (l *Logger) Sublogger(name string) *Logger {
	if l == nil {
		return nil
	}

	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}

	return &Logger{
		mutex:  l.mutex,
		output: l.output,
		level:  l.level,
		prefix: prefix,
	}
}

// log writes a pre-formatted line, applying the logger's name prefix.
func (l *Logger) log(line string) {
	if l.prefix != "" {
		line = fmt.Sprintf("[%s] %s", l.prefix, line)
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.output.Output(4, line)
}

// enabled returns whether the specified level would be logged.
func (l *Logger) enabled(level Level) bool {
	return l != nil && l.level >= level
}

// Error logs error-level information with fmt.Sprint semantics.
func (l *Logger) Error(v ...interface{}) {
	if l.enabled(LevelError) {
		l.log(color.RedString("ERROR: %s", fmt.Sprint(v...)))
	}
}

// Errorf logs error-level information with fmt.Sprintf semantics.
func (l *Logger) Errorf(format string, v ...interface{}) {
	if l.enabled(LevelError) {
		l.log(color.RedString("ERROR: %s", fmt.Sprintf(format, v...)))
	}
}

// Warn logs warning-level information with fmt.Sprint semantics.
func (l *Logger) Warn(v ...interface{}) {
	if l.enabled(LevelWarn) {
		l.log(color.YellowString("WARN: %s", fmt.Sprint(v...)))
	}
}

// Warnf logs warning-level information with fmt.Sprintf semantics.
func (l *Logger) Warnf(format string, v ...interface{}) {
	if l.enabled(LevelWarn) {
		l.log(color.YellowString("WARN: %s", fmt.Sprintf(format, v...)))
	}
}

// Info logs informational output with fmt.Sprint semantics.
func (l *Logger) Info(v ...interface{}) {
	if l.enabled(LevelInfo) {
		l.log("INFO: " + fmt.Sprint(v...))
	}
}

// Infof logs informational output with fmt.Sprintf semantics.
func (l *Logger) Infof(format string, v ...interface{}) {
	if l.enabled(LevelInfo) {
		l.log("INFO: " + fmt.Sprintf(format, v...))
	}
}

// Debug logs debug-level output with fmt.Sprint semantics.
func (l *Logger) Debug(v ...interface{}) {
	if l.enabled(LevelDebug) {
		l.log("DEBUG: " + fmt.Sprint(v...))
	}
}

// Debugf logs debug-level output with fmt.Sprintf semantics.
func (l *Logger) Debugf(format string, v ...interface{}) {
	if l.enabled(LevelDebug) {
		l.log("DEBUG: " + fmt.Sprintf(format, v...))
	}
}

// DebugWriter returns an io.Writer that writes lines at debug level.
func (l *Logger) DebugWriter() io.Writer {
	if !l.enabled(LevelDebug) {
		return ioutil.Discard
	}
	return &writer{callback: l.Debug}
}

// Trace logs trace-level output with fmt.Sprint semantics.
func (l *Logger) Trace(v ...interface{}) {
	if l.enabled(LevelTrace) {
		l.log("TRACE: " + fmt.Sprint(v...))
	}
}

// Tracef logs trace-level output with fmt.Sprintf semantics.
func (l *Logger) Tracef(format string, v ...interface{}) {
	if l.enabled(LevelTrace) {
		l.log("TRACE: " + fmt.Sprintf(format, v...))
	}
}

// Writer returns an io.Writer that writes lines at info level.
func (l *Logger) Writer() io.Writer {
	if !l.enabled(LevelInfo) {
		return ioutil.Discard
	}
	return &writer{callback: l.Info}
}
