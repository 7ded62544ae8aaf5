package hlog

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Trace 调用默认记录器的 Trace 方法。
func Trace(v ...any) { logger.Trace(v...) }

// Debug 调用默认记录器的 Debug 方法。
func Debug(v ...any) { logger.Debug(v...) }

// Info 调用默认记录器的 Info 方法。
func Info(v ...any) { logger.Info(v...) }

// Warn 调用默认记录器的 Warn 方法。
func Warn(v ...any) { logger.Warn(v...) }

// Error 调用默认记录器的 Error 方法。
func Error(v ...any) { logger.Error(v...) }

// Fatal 调用默认记录器的 Fatal 方法，然后 os.Exit(1)。
func Fatal(v ...any) { logger.Fatal(v...) }

// Tracef 调用默认记录器的 Tracef 方法。
func Tracef(format string, v ...any) { logger.Tracef(format, v...) }

// Debugf 调用默认记录器的 Debugf 方法。
func Debugf(format string, v ...any) { logger.Debugf(format, v...) }

// Infof 调用默认记录器的 Infof 方法。
func Infof(format string, v ...any) { logger.Infof(format, v...) }

// Warnf 调用默认记录器的 Warnf 方法。
func Warnf(format string, v ...any) { logger.Warnf(format, v...) }

// Errorf 调用默认记录器的 Errorf 方法。
func Errorf(format string, v ...any) { logger.Errorf(format, v...) }

// Fatalf 调用默认记录器的 Fatalf 方法，然后 os.Exit(1)。
func Fatalf(format string, v ...any) { logger.Fatalf(format, v...) }

type defaultLogger struct {
	std   *log.Logger
	level Level
	depth int
}

func (l *defaultLogger) SetOutput(w io.Writer) { l.std.SetOutput(w) }

func (l *defaultLogger) SetLevel(lv Level) { l.level = lv }

func (l *defaultLogger) Trace(v ...any) { l.output(LevelTrace, fmt.Sprint(v...)) }
func (l *defaultLogger) Debug(v ...any) { l.output(LevelDebug, fmt.Sprint(v...)) }
func (l *defaultLogger) Info(v ...any)  { l.output(LevelInfo, fmt.Sprint(v...)) }
func (l *defaultLogger) Warn(v ...any)  { l.output(LevelWarn, fmt.Sprint(v...)) }
func (l *defaultLogger) Error(v ...any) { l.output(LevelError, fmt.Sprint(v...)) }
func (l *defaultLogger) Fatal(v ...any) { l.output(LevelFatal, fmt.Sprint(v...)) }

func (l *defaultLogger) Tracef(format string, v ...any) { l.outputf(LevelTrace, format, v) }
func (l *defaultLogger) Debugf(format string, v ...any) { l.outputf(LevelDebug, format, v) }
func (l *defaultLogger) Infof(format string, v ...any)  { l.outputf(LevelInfo, format, v) }
func (l *defaultLogger) Warnf(format string, v ...any)  { l.outputf(LevelWarn, format, v) }
func (l *defaultLogger) Errorf(format string, v ...any) { l.outputf(LevelError, format, v) }
func (l *defaultLogger) Fatalf(format string, v ...any) { l.outputf(LevelFatal, format, v) }

func (l *defaultLogger) outputf(lv Level, format string, v []any) {
	if l.level > lv {
		return
	}
	l.write(lv, fmt.Sprintf(format, v...))
}

func (l *defaultLogger) output(lv Level, msg string) {
	// 低于设置的级别不输出
	if l.level > lv {
		return
	}
	l.write(lv, msg)
}

// write 的调用深度必须与 depth 保持一致。
func (l *defaultLogger) write(lv Level, msg string) {
	_ = l.std.Output(l.depth, lv.String()+msg)
	if lv == LevelFatal {
		os.Exit(1)
	}
}
