package network

import (
	"errors"
	"io/fs"
	"os"
)

// UnlinkUdsFile 删除 unix 套接字文件，文件不存在时不报错。
func UnlinkUdsFile(network, addr string) error {
	if network != "unix" {
		return nil
	}
	if err := os.Remove(addr); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
