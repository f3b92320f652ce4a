package metricq

// Unit identifies the measurement unit attached to a metric. The names map
// onto the CloudWatch unit vocabulary.
type Unit uint8

const (
	UnitNone Unit = iota
	UnitCount
	UnitPercent
	UnitSeconds
	UnitMilliseconds
	UnitMicroseconds
	UnitBytes
	UnitKilobytes
	UnitMegabytes
	UnitGigabytes
	UnitTerabytes
	UnitBits
	UnitKilobits
	UnitMegabits
	UnitGigabits
	UnitTerabits
	UnitBytesPerSecond
	UnitKilobytesPerSecond
	UnitMegabytesPerSecond
	UnitGigabytesPerSecond
	UnitTerabytesPerSecond
	UnitBitsPerSecond
	UnitKilobitsPerSecond
	UnitMegabitsPerSecond
	UnitGigabitsPerSecond
	UnitTerabitsPerSecond
	UnitCountPerSecond
)

var unitNames = [...]string{
	UnitNone:               "None",
	UnitCount:              "Count",
	UnitPercent:            "Percent",
	UnitSeconds:            "Seconds",
	UnitMilliseconds:       "Milliseconds",
	UnitMicroseconds:       "Microseconds",
	UnitBytes:              "Bytes",
	UnitKilobytes:          "Kilobytes",
	UnitMegabytes:          "Megabytes",
	UnitGigabytes:          "Gigabytes",
	UnitTerabytes:          "Terabytes",
	UnitBits:               "Bits",
	UnitKilobits:           "Kilobits",
	UnitMegabits:           "Megabits",
	UnitGigabits:           "Gigabits",
	UnitTerabits:           "Terabits",
	UnitBytesPerSecond:     "Bytes/Second",
	UnitKilobytesPerSecond: "Kilobytes/Second",
	UnitMegabytesPerSecond: "Megabytes/Second",
	UnitGigabytesPerSecond: "Gigabytes/Second",
	UnitTerabytesPerSecond: "Terabytes/Second",
	UnitBitsPerSecond:      "Bits/Second",
	UnitKilobitsPerSecond:  "Kilobits/Second",
	UnitMegabitsPerSecond:  "Megabits/Second",
	UnitGigabitsPerSecond:  "Gigabits/Second",
	UnitTerabitsPerSecond:  "Terabits/Second",
	UnitCountPerSecond:     "Count/Second",
}

// Name returns the wire-format unit name.
// Params: none.
// Returns: CloudWatch unit string; "None" for unknown values.
func (u Unit) Name() string {
	if int(u) < len(unitNames) && unitNames[u] != "" {
		return unitNames[u]
	}
	return "None"
}
