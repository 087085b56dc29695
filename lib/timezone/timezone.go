package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Australia/Hobart")
	if err != nil {
		panic(err)
	}
}

// force timezone to match the portal's billing timezone, otherwise
// day-boundary logic (price-per-day rollovers, snapshot bucketing)
// drifts when a server lands in a different region
func Now() time.Time {
	return time.Now().In(Location)
}
