package hlog

import (
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

type bufWriter struct {
	b []byte
}

func (w *bufWriter) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

func useTestLoggers(w *bufWriter) {
	logger = &defaultLogger{std: log.New(w, "", 0), depth: 5}
	sysLogger = &systemLogger{logger: &defaultLogger{std: log.New(w, "", 0), depth: 5}, prefix: systemLogPrefix}
}

func TestDefaultLogger(t *testing.T) {
	var w bufWriter
	useTestLoggers(&w)

	Trace("收到首行")
	Debug("收到头部")
	Info("开始处理")
	Warn("头部过长")
	Error("解析失败")
	Infof("%d 个头部", 33)

	assert.Equal(t, "[Trace] 收到首行\n"+
		"[Debug] 收到头部\n"+
		"[Info] 开始处理\n"+
		"[Warn] 头部过长\n"+
		"[Error] 解析失败\n"+
		"[Info] 33 个头部\n", string(w.b))
}

func TestLevelFilter(t *testing.T) {
	var w bufWriter
	useTestLoggers(&w)
	SetLevel(LevelWarn)
	defer SetLevel(LevelTrace)

	Debug("不输出")
	Infof("不输出 %d", 1)
	Warnf("输出 %d", 2)

	assert.Equal(t, "[Warn] 输出 2\n", string(w.b))
}

func TestSystemLogger(t *testing.T) {
	var w bufWriter
	useTestLoggers(&w)

	SystemLogger().Info("启动")
	SystemLogger().Warnf("超时 %ds", 60)

	assert.Equal(t, "[Info] HOSTBIND: 启动\n[Warn] HOSTBIND: 超时 60s\n", string(w.b))
}

func TestSilentMode(t *testing.T) {
	var w bufWriter
	useTestLoggers(&w)
	SetSilentMode(true)
	defer SetSilentMode(false)

	SystemLogger().Errorf(ParseErrorFormat, "127.0.0.1:1", "HPE_INVALID_METHOD")
	SystemLogger().Errorf("其他错误 %s", "x")

	assert.Equal(t, "[Error] HOSTBIND: 其他错误 x\n", string(w.b))
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "[Fatal] ", LevelFatal.String())
	assert.Equal(t, "[?9] ", Level(9).String())
}
