package pkg

import "errors"

// Streaming and configuration errors.
var (
	// ErrUnsupportedRate indicates a sample rate outside the configured set.
	ErrUnsupportedRate = errors.New("unsupported sample rate")

	// ErrCalibrationTimeout indicates the calibration subsystem did not
	// report idle before the configured deadline.
	ErrCalibrationTimeout = errors.New("calibration busy timeout")

	// ErrClockConfig indicates the master clock could not be programmed.
	ErrClockConfig = errors.New("clock configuration failed")

	// ErrNotConfigured indicates no sample rate has been configured yet.
	ErrNotConfigured = errors.New("clock not configured")

	// ErrAlreadyRunning indicates the bridge is already running.
	ErrAlreadyRunning = errors.New("already running")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrBufferTooSmall indicates the provided buffer is too small.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrOverrun indicates a bus FIFO had no room for written samples.
	ErrOverrun = errors.New("data overrun")

	// ErrBusStopped indicates a bus direction was used while stopped.
	ErrBusStopped = errors.New("bus stopped")
)
