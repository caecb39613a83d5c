// Package errors carries the kernel's classified error taxonomy. Every
// typed failure surfaced to callers maps to a stable category and code so
// hosts can branch on failures without parsing message text.
package errors

import "errors"

type Category string

const (
	CategoryInvalidInput    Category = "invalid_input"
	CategoryWriteOnce       Category = "write_once_violation"
	CategoryLedgerCorrupt   Category = "ledger_corrupt"
	CategoryContractLoad    Category = "contract_load"
	CategoryVerification    Category = "verification_failed"
	CategoryIOFailure       Category = "io_failure"
	CategoryStateContention Category = "state_contention"
	CategoryInternalFailure Category = "internal_failure"
)

// Stable codes for the kernel's typed failures.
const (
	CodeInvalidEventType  = "invalid_event_type"
	CodeAlreadyExists     = "already_exists"
	CodeCorruptLedgerLine = "corrupt_ledger_line"
	CodeContractLoadError = "contract_load_error"
)

type classifiedError struct {
	category  Category
	code      string
	hint      string
	retryable bool
	cause     error
}

func (e *classifiedError) Error() string {
	if e.cause == nil {
		return "unknown error"
	}
	return e.cause.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.cause
}

func (e *classifiedError) Category() Category {
	return e.category
}

func (e *classifiedError) Code() string {
	return e.code
}

func (e *classifiedError) Hint() string {
	return e.hint
}

func (e *classifiedError) Retryable() bool {
	return e.retryable
}

func Wrap(cause error, category Category, code, hint string, retryable bool) error {
	if cause == nil {
		return nil
	}
	return &classifiedError{
		category:  category,
		code:      code,
		hint:      hint,
		retryable: retryable,
		cause:     cause,
	}
}

func CategoryOf(err error) Category {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.category
	}
	return ""
}

func CodeOf(err error) string {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.code
	}
	return ""
}

func HintOf(err error) string {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.hint
	}
	return ""
}

func RetryableOf(err error) bool {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.retryable
	}
	return false
}

// IsCode reports whether any error in the chain carries the given code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

// IsAlreadyExists reports a write-once violation anywhere in the chain.
func IsAlreadyExists(err error) bool {
	return IsCode(err, CodeAlreadyExists)
}

// IsCorruptLedger reports a hard audit-ledger parse failure.
func IsCorruptLedger(err error) bool {
	return IsCode(err, CodeCorruptLedgerLine)
}
