package protocol

import "errors"

var (
	ErrInvalidAddress   = errors.New("protocol: invalid address")
	ErrInvalidStartByte = errors.New("protocol: invalid start byte")
	ErrInvalidEndByte   = errors.New("protocol: invalid end byte")
	ErrUnexpectedSize   = errors.New("protocol: unexpected size")
	ErrSizeMismatch     = errors.New("protocol: size did not match")
	ErrChecksum         = errors.New("protocol: checksum mismatch")
	ErrUnsupported      = errors.New("protocol: unsupported message")
)
