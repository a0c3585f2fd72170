package domain

import "github.com/pkg/errors"

var (
	// ErrQuoteUnavailable a venue could not provide a price for the pair.
	ErrQuoteUnavailable = errors.New("quote unavailable")
	// ErrInsufficientData fewer than two venues returned a valid price.
	ErrInsufficientData = errors.New("not enough data for arbitrage")
	// ErrOrderRejected a venue reported a failed order placement.
	ErrOrderRejected = errors.New("order rejected")
	// ErrWithdrawalRejected a venue reported a failed withdrawal.
	ErrWithdrawalRejected = errors.New("withdrawal rejected")
	// ErrSettlementTimeout balance did not settle within the polling bound.
	ErrSettlementTimeout = errors.New("settlement timeout")
	// ErrNotificationDeliveryFailed notification channel could not deliver a message.
	ErrNotificationDeliveryFailed = errors.New("notification delivery failed")
	// ErrRejectedByOperator manual confirmation declined the plan.
	ErrRejectedByOperator = errors.New("rejected by operator")
	// ErrVenueAuth a venue rejected the API credentials or their permissions.
	ErrVenueAuth = errors.New("venue rejected api credentials")
	// ErrSelfArbitrage buy and sell venue are the same.
	ErrSelfArbitrage = errors.New("buy and sell venue must differ")
)
