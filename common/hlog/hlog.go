// Package hlog 提供 hostbind 内部与业务共用的分级日志。
package hlog

import (
	"io"
	"log"
	"os"
)

var (
	logger FullLogger = newDefaultLogger(os.Stderr)

	sysLogger FullLogger = &systemLogger{logger: newDefaultLogger(os.Stderr), prefix: systemLogPrefix}
)

// SetOutput 设置默认记录器和系统记录器的写入器，默认为 os.Stderr。
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
	sysLogger.SetOutput(w)
}

// SetLevel 设置默认记录器和系统记录器的输出级别。并发不安全。
func SetLevel(lv Level) {
	logger.SetLevel(lv)
	sysLogger.SetLevel(lv)
}

// DefaultLogger 返回默认记录器。
func DefaultLogger() FullLogger {
	return logger
}

// SystemLogger 返回系统记录器，仅供框架内部使用。
func SystemLogger() FullLogger {
	return sysLogger
}

// SetSystemLogger 替换系统记录器的底层实现。并发不安全。
func SetSystemLogger(v FullLogger) {
	sysLogger = &systemLogger{logger: v, prefix: systemLogPrefix}
}

// SetLogger 同时替换默认记录器和系统记录器。并发不安全。
func SetLogger(v FullLogger) {
	logger = v
	SetSystemLogger(v)
}

func newDefaultLogger(w io.Writer) *defaultLogger {
	return &defaultLogger{
		std:   log.New(w, "", log.LstdFlags|log.Lshortfile|log.Lmicroseconds),
		depth: 5,
	}
}
