package server

import "github.com/favbox/hostbind/network/standard"

var defaultTransporter = standard.NewTransporter
