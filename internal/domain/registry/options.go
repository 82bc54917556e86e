package registry

import "time"

type settings struct {
	flushDelay      time.Duration
	sendBuffer      int
	signatureWindow int
	sendTimeout     time.Duration
}

func defaultSettings() settings {
	return settings{
		flushDelay:      75 * time.Millisecond,
		sendBuffer:      256,
		signatureWindow: 256,
		sendTimeout:     500 * time.Millisecond,
	}
}

// Option configures the Hub.
type Option func(*settings)

// WithFlushDelay sets the batching debounce window.
func WithFlushDelay(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.flushDelay = d
		}
	}
}

// WithSendBuffer sets the per-session outbound frame queue size.
func WithSendBuffer(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.sendBuffer = n
		}
	}
}

// WithSignatureWindow sets the per-session dedup window. The floor of 100
// keeps the window useful under bursty fan-out.
func WithSignatureWindow(n int) Option {
	return func(s *settings) {
		if n < 100 {
			n = 100
		}
		s.signatureWindow = n
	}
}

// WithSendTimeout bounds how long a send may block before it counts as
// backpressure.
func WithSendTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.sendTimeout = d
		}
	}
}
