package errors

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrTimeout         = errors.New("timeout waiting for console output")
	ErrSessionClosed   = errors.New("console session closed")
	ErrCatastrophic    = errors.New("irrecoverable condition")
	ErrBatchHung       = errors.New("batch session hung")
	ErrUnknownPortType = errors.New("unknown PoE port type")
)

// TimeoutError возникает, когда ожидаемый шаблон не появился в буфере вовремя.
type TimeoutError struct {
	Command string
	Pattern string
	Timeout time.Duration
	Tail    string // последние символы буфера для разбора причины
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %v waiting for %q", e.Timeout, e.Pattern)
	if e.Command != "" {
		msg = fmt.Sprintf("%s (command %q)", msg, e.Command)
	}
	if e.Tail != "" {
		msg += "\nlast output: " + e.Tail
	}
	return msg
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}

// DiagError представляет собой ошибку операции диагностики с сообщением для оператора.
type DiagError struct {
	Op           string // операция, на которой произошла ошибка
	Message      string // сообщение для оператора
	Err          error  // внутренняя ошибка
	IsUserFacing bool   // можно ли показывать Err оператору
}

func (d *DiagError) Error() string {
	if d == nil {
		return ""
	}
	if d.Err != nil {
		return fmt.Sprintf("%s: %s: %v", d.Op, d.Message, d.Err)
	}
	return fmt.Sprintf("%s: %s", d.Op, d.Message)
}

func (d *DiagError) Unwrap() error {
	return d.Err
}

// NewDiagError создает новый экземпляр DiagError.
func NewDiagError(op, message string, err error, isUserFacing bool) *DiagError {
	return &DiagError{
		Op:           op,
		Message:      message,
		Err:          err,
		IsUserFacing: isUserFacing,
	}
}

// Catastrophic оборачивает ErrCatastrophic сообщением для оператора.
func Catastrophic(op, message string) *DiagError {
	return NewDiagError(op, message, ErrCatastrophic, true)
}
