package clock

import (
	"context"
	"fmt"
	"time"

	"github.com/beevik/ntp"
)

// Source measures the offset of the local clock against a time server.
type Source interface {
	Offset(ctx context.Context, server string) (time.Duration, error)
}

// NTPSource queries an NTP server.
type NTPSource struct {
	// Timeout bounds one query.
	Timeout time.Duration
}

// Offset performs one NTP query and validates the response.
func (s NTPSource) Offset(ctx context.Context, server string) (time.Duration, error) {
	timeout := s.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); timeout <= 0 || left < timeout {
			timeout = left
		}
	}

	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return 0, fmt.Errorf("query %s: %w", server, err)
	}

	if err := resp.Validate(); err != nil {
		return 0, fmt.Errorf("validate response from %s: %w", server, err)
	}

	return resp.ClockOffset, nil
}
