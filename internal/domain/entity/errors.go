package entity

import "errors"

var (
	// ErrInvalidParams marks a malformed detection parameter snapshot.
	ErrInvalidParams = errors.New("invalid detection params")

	// ErrClassificationUnavailable is returned when no verdict could be obtained.
	ErrClassificationUnavailable = errors.New("classification unavailable")

	// ErrNoPeer means no classifier is connected.
	ErrNoPeer = errors.New("no classifier connected")

	// ErrActuatorTransmit wraps serial write failures.
	ErrActuatorTransmit = errors.New("actuator transmit failed")

	// ErrVisionUnavailable is returned by builds without OpenCV.
	ErrVisionUnavailable = errors.New("gocv build tag is not enabled")
)
