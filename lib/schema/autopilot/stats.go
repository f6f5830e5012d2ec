// Copyright 2026 The Flightlog Authors
// SPDX-License-Identifier: Apache-2.0

package autopilot

import "math"

// DayBucket is one day of the rolling-statistics time series.
type DayBucket struct {
	Day      string  `json:"day"`
	OK       int     `json:"ok"`
	Fail     int     `json:"fail"`
	Total    int     `json:"total"`
	FailRate float64 `json:"fail_rate"`
}

// GroupStat is one entry of a per-task or per-autopilot breakdown in
// the stats response, annotated with its own fail rate.
type GroupStat struct {
	Name     string  `json:"name"`
	OK       int     `json:"ok"`
	Fail     int     `json:"fail"`
	Total    int     `json:"total"`
	FailRate float64 `json:"fail_rate"`
}

// FailRate returns fail/(ok+fail) as a percentage rounded to one
// decimal place, or 0 when the bucket is empty.
func FailRate(ok, fail int) float64 {
	total := ok + fail
	if total == 0 {
		return 0
	}
	return math.Round(float64(fail)/float64(total)*1000) / 10
}
