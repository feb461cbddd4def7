package command

import "errors"

var errBadCommandByte = errors.New("command: byte outside ASCII 32..126")
