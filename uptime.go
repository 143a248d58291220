package extchannel

import (
	"math"
	"time"
)

var started = time.Now()

// Uptime reports how many seconds the process has been running
func Uptime() float64 {
	return math.Floor(time.Since(started).Seconds())
}
