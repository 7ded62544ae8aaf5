//go:build !windows

package server

import "github.com/favbox/hostbind/network/netpoll"

var defaultTransporter = netpoll.NewTransporter
