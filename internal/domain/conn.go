// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxConnIDLen = 36

var (
	ErrConnIDEmpty   = errors.New("connection id empty")
	ErrConnIDTooLong = errors.New("connection id too long")
)

// ConnID identifies one live transport connection. It is never reused.
type ConnID string

func NewConnID() ConnID {
	return ConnID(uuid.NewString())
}

func ParseConnID(s string) (ConnID, error) {
	if len(s) == 0 {
		return "", ErrConnIDEmpty
	}
	if len(s) > MaxConnIDLen {
		return "", ErrConnIDTooLong
	}
	return ConnID(s), nil
}
