package downpayment

import "errors"

// Configuration and wiring.
var (
	ErrStateUnavailable = errors.New("downpayment: state not configured")
	ErrPoolUnavailable  = errors.New("downpayment: lend pool not configured")
	ErrInvalidAmount    = errors.New("downpayment: borrow amount must be non-negative")
)

// Authorization.
var (
	ErrBadSignature   = errors.New("downpayment: intent signature invalid")
	ErrSignerNotBuyer = errors.New("downpayment: intent not signed by buyer")
)

// Governance.
var (
	ErrNotGovernance         = errors.New("downpayment: caller is not governance")
	ErrAdapterNotWhitelisted = errors.New("downpayment: adapter not whitelisted")
	ErrAdapterAlreadyListed  = errors.New("downpayment: adapter already whitelisted")
	ErrAdapterNull           = errors.New("downpayment: adapter can not be null address")
	ErrAdapterUnregistered   = errors.New("downpayment: no adapter registered for address")
	ErrFeeOverflow           = errors.New("downpayment: fee overflow")
	ErrNullCollector         = errors.New("downpayment: fee collector can not be null address")
	ErrNoCollector           = errors.New("downpayment: fee collector not set")
)

// Flash loan callback guards.
var (
	ErrCallerNotPool    = errors.New("downpayment: caller must be flash lend pool")
	ErrInitiatorNotSelf = errors.New("downpayment: flashloan initiator must be the engine")
	ErrMultiAsset       = errors.New("downpayment: multiple assets not supported")
	ErrWrongAsset       = errors.New("downpayment: borrowed asset does not match settlement currency")
)

// Settlement.
var (
	ErrCurrencyNotAllowed     = errors.New("downpayment: settlement currency not allowed")
	ErrOverBorrow             = errors.New("downpayment: borrow exceeds price plus premium and fee")
	ErrInsufficientAllowance  = errors.New("downpayment: buyer allowance insufficient for contribution")
	ErrInsufficientDelegation = errors.New("downpayment: borrow delegation insufficient")
)
