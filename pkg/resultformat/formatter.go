// Package resultformat writes BiometricResult streams as newline-delimited
// JSON or as a sequence of MessagePack frames.
package resultformat

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/chrissnell/biometrics/internal/types"
)

// Format selects the wire encoding
type Format int

const (
	FormatJSON Format = iota
	FormatMsgPack
)

func (f Format) String() string {
	if f == FormatMsgPack {
		return "msgpack"
	}
	return "json"
}

// ContentType returns the MIME type of the encoding
func (f Format) ContentType() string {
	if f == FormatMsgPack {
		return "application/x-msgpack"
	}
	return "application/x-ndjson"
}

// ParseFormat converts a format name to a Format. JSON is the default.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return FormatJSON, nil
	case "msgpack":
		return FormatMsgPack, nil
	default:
		return FormatJSON, fmt.Errorf("unknown output format %q", name)
	}
}

// Record is the serialized form of one BiometricResult
type Record struct {
	Session   string    `json:"session,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	HeartRate           float64  `json:"heart_rate"`
	HeartRateConfidence float64  `json:"heart_rate_confidence"`
	HeartRateValid      bool     `json:"heart_rate_valid"`
	IsWorn              bool     `json:"is_worn"`
	PeakCount           int      `json:"peak_count"`
	HRVMs               *float64 `json:"hrv_ms,omitempty"`

	SpO2              float64 `json:"spo2"`
	SpO2Confidence    float64 `json:"spo2_confidence"`
	SpO2Valid         bool    `json:"spo2_valid"`
	SpO2ClinicalValid bool    `json:"spo2_clinical_valid"`
	RRatio            float64 `json:"r_ratio"`

	PerfusionIndex float64 `json:"perfusion_index"`
	Activity       string  `json:"activity"`
	MotionLevel    float64 `json:"motion_level"`
	SignalStrength string  `json:"signal_strength"`
	Method         string  `json:"method"`
}

// NewRecord converts a result for output, tagging it with a session ID
func NewRecord(session string, r types.BiometricResult) Record {
	return Record{
		Session:             session,
		Timestamp:           r.Timestamp,
		HeartRate:           r.HeartRate,
		HeartRateConfidence: r.HeartRateConfidence,
		HeartRateValid:      r.HeartRateValid,
		IsWorn:              r.IsWorn,
		PeakCount:           r.PeakCount,
		HRVMs:               r.HRVMs,
		SpO2:                r.SpO2,
		SpO2Confidence:      r.SpO2Confidence,
		SpO2Valid:           r.SpO2Valid,
		SpO2ClinicalValid:   r.SpO2ClinicalValid,
		RRatio:              r.RRatio,
		PerfusionIndex:      r.PerfusionIndex,
		Activity:            r.Activity.String(),
		MotionLevel:         r.MotionLevel,
		SignalStrength:      r.SignalStrength.String(),
		Method:              r.Method.String(),
	}
}

// Encoder writes records to an io.Writer in one format
type Encoder struct {
	format  Format
	session string
	json    *json.Encoder
	msgpack *msgpack.Encoder
	count   int
}

// NewEncoder creates an encoder that tags every record with session
func NewEncoder(w io.Writer, format Format, session string) *Encoder {
	e := &Encoder{
		format:  format,
		session: session,
	}
	if format == FormatMsgPack {
		e.msgpack = msgpack.NewEncoder(w)
		e.msgpack.SetCustomStructTag("json") // Use json tags for MessagePack
	} else {
		e.json = json.NewEncoder(w)
	}
	return e
}

// Encode writes one result
func (e *Encoder) Encode(r types.BiometricResult) error {
	rec := NewRecord(e.session, r)

	var err error
	if e.format == FormatMsgPack {
		err = e.msgpack.Encode(&rec)
	} else {
		err = e.json.Encode(&rec)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %w", e.format, err)
	}
	e.count++
	return nil
}

// Count returns the number of records written
func (e *Encoder) Count() int {
	return e.count
}

// Decoder reads records written by Encoder
type Decoder struct {
	format  Format
	json    *json.Decoder
	msgpack *msgpack.Decoder
}

// NewDecoder creates a decoder for one format
func NewDecoder(r io.Reader, format Format) *Decoder {
	d := &Decoder{format: format}
	if format == FormatMsgPack {
		d.msgpack = msgpack.NewDecoder(r)
		d.msgpack.SetCustomStructTag("json")
	} else {
		d.json = json.NewDecoder(r)
	}
	return d
}

// Decode reads the next record. It returns io.EOF at the end of the stream.
func (d *Decoder) Decode() (Record, error) {
	var rec Record
	var err error
	if d.format == FormatMsgPack {
		err = d.msgpack.Decode(&rec)
	} else {
		err = d.json.Decode(&rec)
	}
	if errors.Is(err, io.EOF) {
		return Record{}, io.EOF
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to decode %s record: %w", d.format, err)
	}
	return rec, nil
}
