package actuator

import (
	"fmt"
	"time"

	"github.com/oshokin/garden-controller/internal/driver/output"
)

// ParityOf returns a decision that is high while the named time component
// (second, minute or hour) is odd.
func ParityOf(component string) (Decide, error) {
	var pick func(time.Time) int

	switch component {
	case "second":
		pick = time.Time.Second
	case "minute":
		pick = time.Time.Minute
	case "hour":
		pick = time.Time.Hour
	default:
		return nil, fmt.Errorf("unknown time component %q", component)
	}

	return func(t time.Time) output.Level {
		return pick(t)%2 == 1
	}, nil
}

// FormatReport renders the clock report line in asctime layout plus zone.
func FormatReport(t time.Time) string {
	return "Current time is: " + t.Format(time.ANSIC+" MST")
}
