package adc

import "errors"

// RawSample is a single 12-bit ADC code (0-4095).
type RawSample uint16

// MaxRaw is the largest code a 12-bit converter can produce.
const MaxRaw RawSample = 4095

// SequenceID selects one of the converter's sample sequencers.
type SequenceID uint8

// StepID selects a step within a sequence.
type StepID uint8

// Trigger selects what starts a conversion on a sequencer.
type Trigger uint8

const (
	TriggerProcessor Trigger = iota // software-issued start signal
	TriggerComparator
	TriggerExternal
	TriggerTimer
	TriggerAlways
)

// Channel is the analog input sampled by a step.
type Channel uint8

// ChannelTempSensor is the on-die temperature sensor input.
const ChannelTempSensor Channel = 0x80

// StepFlags modify how a step behaves.
type StepFlags uint8

const (
	// StepInterrupt raises the sequence's completion flag when the step finishes.
	StepInterrupt StepFlags = 1 << iota
	// StepEnd marks the last step of the sequence.
	StepEnd
)

var (
	ErrNotConnected     = errors.New("adc: not connected")
	ErrNotEnabled       = errors.New("adc: converter not enabled")
	ErrUnknownSequence  = errors.New("adc: sequence not configured")
	ErrSequenceDisabled = errors.New("adc: sequence disabled")
	ErrNoResult         = errors.New("adc: no conversion result")
)

// Setup is the one-time configuration surface of a converter.
type Setup interface {
	EnableADC() error
	ConfigureSequencer(seq SequenceID, trigger Trigger, priority uint8) error
	ConfigureStep(seq SequenceID, step StepID, ch Channel, flags StepFlags) error
	EnableSequencer(seq SequenceID) error
}

// ConversionSource is what the sampling loop drives on every cycle.
// ReadResult is only meaningful after Completed has reported true.
type ConversionSource interface {
	ClearStatus(seq SequenceID)
	Completed(seq SequenceID) bool
	Trigger(seq SequenceID) error
	ReadResult(seq SequenceID) (RawSample, error)
}

// Sequencer is a converter that can be both configured and sampled.
type Sequencer interface {
	Setup
	ConversionSource
}
