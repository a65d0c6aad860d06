package market

import "errors"

// Authorization failures.
var (
	ErrNotOwner  = errors.New("market: caller does not own item")
	ErrNotSeller = errors.New("market: caller is not the seller")
	ErrNotAdmin  = errors.New("market: caller is not an administrator")
)

// Validation failures.
var (
	ErrInvalidPrice      = errors.New("market: price must be positive")
	ErrInvalidDuration   = errors.New("market: duration must be positive")
	ErrInvalidPercentage = errors.New("market: royalty percentage out of range")
	ErrInvalidAmount     = errors.New("market: amount must be positive")
	ErrBidTooLow         = errors.New("market: bid does not exceed current floor")
)

// State failures. All are detected before any state mutation or value
// transfer; a failing operation leaves custody and bookkeeping untouched.
var (
	ErrNoActiveListing    = errors.New("market: no active listing for item")
	ErrAuctionNotFound    = errors.New("market: no auction for item")
	ErrAuctionNotActive   = errors.New("market: auction is not active")
	ErrAuctionEnded       = errors.New("market: auction deadline elapsed")
	ErrAuctionNotYetEnded = errors.New("market: auction deadline not reached")
	ErrNoBidToWithdraw    = errors.New("market: no withdrawable stake")
	ErrWinningBidLocked   = errors.New("market: leading stake cannot be withdrawn")
	ErrItemEscrowed       = errors.New("market: item already in marketplace custody")
	ErrInsufficientFunds  = errors.New("market: insufficient balance")
	ErrNothingToReclaim   = errors.New("market: nothing to reclaim")
)
