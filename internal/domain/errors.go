package domain

import "errors"

// Business-rule violations. Handlers map these to 4xx; anything else is a 5xx
// and the gateway is expected to redeliver.
var (
	// ErrRateUnavailable: conversion required but no rate row exists for the
	// pair. Fatal for that payment attempt, never silently skipped.
	ErrRateUnavailable = errors.New("conversion rate unavailable")

	// ErrStateConflict: a lifecycle transition was requested from an invalid
	// prior state. Rejected with no partial effect.
	ErrStateConflict = errors.New("state conflict")

	ErrBookingNotFound = errors.New("booking not found")
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrInvalidIntent: e.g. a second live security deposit for one booking.
	ErrInvalidIntent = errors.New("invalid payment intent")

	ErrMethodDisabled   = errors.New("payment method disabled")
	ErrPolicyNotFound   = errors.New("payment method policy not found")
	ErrCurrencyMismatch = errors.New("currency mismatch")
)
