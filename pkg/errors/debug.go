package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorDump is a log-friendly rendering of an error chain.
type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	Timeout  bool `json:"timeout,omitempty"`
	Canceled bool `json:"canceled,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	if errors.Is(err, context.DeadlineExceeded) {
		d.Timeout = true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		d.Timeout = true
	}
	if errors.Is(err, context.Canceled) {
		d.Canceled = true
	}

	return d
}

// IsTimeout reports whether err was caused by an expired deadline.
func IsTimeout(err error) bool {
	return Dump(err).Timeout
}
