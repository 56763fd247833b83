package models

import (
	"errors"
	"fmt"
)

// ValidationError — плохой вход: action, coin, размер. Не ретраится.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

func Validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

type InsufficientBalanceError struct {
	Equity   float64
	Required float64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: equity=%.4f required margin=%.4f", e.Equity, e.Required)
}

// RateLimitedError — биржа попросила притормозить. Ретраится локально.
type RateLimitedError struct {
	Op  string
	Err error
}

func (e *RateLimitedError) Error() string { return fmt.Sprintf("%s: rate limited: %v", e.Op, e.Err) }
func (e *RateLimitedError) Unwrap() error { return e.Err }

// ExchangeError — любая другая ошибка коллаборатора. Сбрасывает сессию.
type ExchangeError struct {
	Op  string
	Err error
}

func (e *ExchangeError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *ExchangeError) Unwrap() error { return e.Err }

// BusyError — по этой паре account/coin уже идёт разворот.
type BusyError struct {
	Key string
}

func (e *BusyError) Error() string { return "sequence in progress for " + e.Key }

type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("%s: timed out: %v", e.Op, e.Err) }
func (e *TimeoutError) Unwrap() error { return e.Err }

// SequenceError — сбой посреди последовательности close+open.
// Flat=true значит, что старая позиция закрыта, а новая не открыта.
type SequenceError struct {
	Step string
	Flat bool
	Err  error
}

func (e *SequenceError) Error() string {
	if e.Flat {
		return fmt.Sprintf("%s failed after close, account is flat: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *SequenceError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsRateLimited(err error) bool {
	var r *RateLimitedError
	return errors.As(err, &r)
}

func IsExchange(err error) bool {
	var e *ExchangeError
	return errors.As(err, &e)
}

// IsFlat — true, если ошибка сообщает о закрытой без переоткрытия позиции.
func IsFlat(err error) bool {
	var s *SequenceError
	return errors.As(err, &s) && s.Flat
}

func IsInsufficientBalance(err error) bool {
	var ib *InsufficientBalanceError
	return errors.As(err, &ib)
}

func IsBusy(err error) bool {
	var b *BusyError
	return errors.As(err, &b)
}

func IsTimeout(err error) bool {
	var t *TimeoutError
	return errors.As(err, &t)
}
