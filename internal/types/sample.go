package types

import "time"

// RawSample is a single decoded sensor frame as delivered by the transport layer.
// PPG channels are raw AFE counts; accelerometer axes are raw LSB values.
type RawSample struct {
	Time   time.Time `json:"time" msgpack:"time"`
	IR     int32     `json:"ir" msgpack:"ir"`
	Red    int32     `json:"red" msgpack:"red"`
	Green  int32     `json:"green" msgpack:"green"`
	AccelX int16     `json:"accel_x" msgpack:"accel_x"`
	AccelY int16     `json:"accel_y" msgpack:"accel_y"`
	AccelZ int16     `json:"accel_z" msgpack:"accel_z"`
}

// Timestamp implements buffer.Timed
func (s RawSample) Timestamp() time.Time {
	return s.Time
}

// Accel returns the accelerometer portion of the sample
func (s RawSample) Accel() AccelSample {
	return AccelSample{Time: s.Time, X: s.AccelX, Y: s.AccelY, Z: s.AccelZ}
}

// AccelSample is one three-axis accelerometer reading in raw LSB
type AccelSample struct {
	Time time.Time
	X    int16
	Y    int16
	Z    int16
}

// Timestamp implements buffer.Timed
func (a AccelSample) Timestamp() time.Time {
	return a.Time
}

// PPGChannel identifies one optical channel of the sensor
type PPGChannel int

const (
	ChannelIR PPGChannel = iota
	ChannelRed
	ChannelGreen
)

// Channels lists every PPG channel in sensor order
var Channels = []PPGChannel{ChannelIR, ChannelRed, ChannelGreen}

func (c PPGChannel) String() string {
	switch c {
	case ChannelIR:
		return "ir"
	case ChannelRed:
		return "red"
	case ChannelGreen:
		return "green"
	default:
		return "unknown"
	}
}

// PPGValues holds one reading of every optical channel as floating point counts
type PPGValues struct {
	IR    float64
	Red   float64
	Green float64
}

// Get returns the value for a channel
func (p PPGValues) Get(c PPGChannel) float64 {
	switch c {
	case ChannelRed:
		return p.Red
	case ChannelGreen:
		return p.Green
	default:
		return p.IR
	}
}

// With returns a copy of p with channel c set to v
func (p PPGValues) With(c PPGChannel, v float64) PPGValues {
	switch c {
	case ChannelRed:
		p.Red = v
	case ChannelGreen:
		p.Green = v
	default:
		p.IR = v
	}
	return p
}

// PPG returns the optical channels of a raw sample
func (s RawSample) PPG() PPGValues {
	return PPGValues{IR: float64(s.IR), Red: float64(s.Red), Green: float64(s.Green)}
}
