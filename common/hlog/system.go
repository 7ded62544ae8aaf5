package hlog

import (
	"io"
	"sync/atomic"
)

const (
	systemLogPrefix = "HOSTBIND: "

	// ParseErrorFormat 是连接解析失败时使用的日志格式，静默模式下不输出。
	ParseErrorFormat = "解析请求出错，远端=%s，错误=%s"
)

var silentMode atomic.Bool

// SetSilentMode 设置系统日志的静默开关。
// 开启后，客户端发来的畸形报文不再产生错误日志。
func SetSilentMode(s bool) {
	silentMode.Store(s)
}

// systemLogger 为每条日志加上系统前缀。
type systemLogger struct {
	logger FullLogger
	prefix string
}

func (l *systemLogger) SetOutput(w io.Writer) { l.logger.SetOutput(w) }

func (l *systemLogger) SetLevel(lv Level) { l.logger.SetLevel(lv) }

func (l *systemLogger) Trace(v ...any) { l.logger.Trace(l.prepend(v)...) }
func (l *systemLogger) Debug(v ...any) { l.logger.Debug(l.prepend(v)...) }
func (l *systemLogger) Info(v ...any)  { l.logger.Info(l.prepend(v)...) }
func (l *systemLogger) Warn(v ...any)  { l.logger.Warn(l.prepend(v)...) }
func (l *systemLogger) Error(v ...any) { l.logger.Error(l.prepend(v)...) }
func (l *systemLogger) Fatal(v ...any) { l.logger.Fatal(l.prepend(v)...) }

func (l *systemLogger) Tracef(format string, v ...any) { l.logger.Tracef(l.prefix+format, v...) }
func (l *systemLogger) Debugf(format string, v ...any) { l.logger.Debugf(l.prefix+format, v...) }
func (l *systemLogger) Infof(format string, v ...any)  { l.logger.Infof(l.prefix+format, v...) }
func (l *systemLogger) Warnf(format string, v ...any)  { l.logger.Warnf(l.prefix+format, v...) }
func (l *systemLogger) Fatalf(format string, v ...any) { l.logger.Fatalf(l.prefix+format, v...) }

func (l *systemLogger) Errorf(format string, v ...any) {
	if format == ParseErrorFormat && silentMode.Load() {
		return
	}
	l.logger.Errorf(l.prefix+format, v...)
}

func (l *systemLogger) prepend(v []any) []any {
	return append([]any{l.prefix}, v...)
}
