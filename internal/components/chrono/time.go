package chrono

import (
	"time"
	_ "time/tzdata"
)

var stockholm *time.Location

func init() {
	var err error
	stockholm, err = time.LoadLocation("Europe/Stockholm")
	if err != nil {
		panic(err)
	}
}

// Stockholm returns a [*time.Location] for Europe/Stockholm, the timezone the
// portal renders its dates in.
func Stockholm() *time.Location {
	return stockholm
}

// TimeAPI is the interface that anything depending on the system clock should use.
type TimeAPI interface {
	// Now returns the current time, the timezone of the time will default to Europe/Stockholm.
	Now() time.Time
}

// StandardTime is the standard implementation of TimeAPI using the standard library.
type StandardTime struct{}

// NewStandardTime is the constructor of StandardTime.
func NewStandardTime() StandardTime {
	return StandardTime{}
}

func (s StandardTime) Now() time.Time {
	return time.Now().In(stockholm)
}

// FixedTime is a TimeAPI that always returns the same instant.
type FixedTime struct {
	Time time.Time
}

func (f FixedTime) Now() time.Time {
	return f.Time
}
