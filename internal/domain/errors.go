package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrOrderNotActive = errors.New("order is not active")
	ErrInvalidTargets = errors.New("invalid target prices")
	ErrInvalidWallet  = errors.New("invalid wallet address")
	ErrRateLimited    = errors.New("rate limited")
)
