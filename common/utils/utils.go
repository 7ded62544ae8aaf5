package utils

import (
	"reflect"
	"runtime"
)

// NameOfFunction 获取函数名。
func NameOfFunction(f any) string {
	return runtime.FuncForPC(reflect.ValueOf(f).Pointer()).Name()
}
