//go:build rp2040

package main

import (
	"device/rp"
	"errors"
	"machine"

	"github.com/itohio/gotemp/pkg/adc"
)

// rpSequencer exposes the RP2040 one-shot converter as a single-step sequencer.
// The READY bit stays set until the next START_ONCE, so completion is only
// reported while a conversion is armed.
type rpSequencer struct {
	enabled    bool
	configured bool
	stepReady  bool
	running    bool
	armed      bool
	seq        adc.SequenceID
}

var _ adc.Sequencer = (*rpSequencer)(nil)

func (s *rpSequencer) EnableADC() error {
	if rp.ADC.CS.Get()&rp.ADC_CS_EN == 0 {
		machine.InitADC()
	}
	s.enabled = true
	return nil
}

func (s *rpSequencer) ConfigureSequencer(seq adc.SequenceID, trigger adc.Trigger, priority uint8) error {
	if !s.enabled {
		return adc.ErrNotEnabled
	}
	if trigger != adc.TriggerProcessor {
		return errors.New("rp2040: only processor trigger is supported")
	}
	s.seq = seq
	s.configured = true
	s.stepReady = false
	return nil
}

func (s *rpSequencer) ConfigureStep(seq adc.SequenceID, step adc.StepID, ch adc.Channel, flags adc.StepFlags) error {
	if !s.configured || seq != s.seq {
		return adc.ErrUnknownSequence
	}
	if step != 0 || ch != adc.ChannelTempSensor || flags&adc.StepEnd == 0 {
		return errors.New("rp2040: single temperature-sensor step only")
	}

	rp.ADC.CS.SetBits(rp.ADC_CS_TS_EN)
	rp.ADC.CS.ReplaceBits(uint32(ADC_TEMP_CHANNEL)<<rp.ADC_CS_AINSEL_Pos, rp.ADC_CS_AINSEL_Msk, 0)
	s.stepReady = true
	return nil
}

func (s *rpSequencer) EnableSequencer(seq adc.SequenceID) error {
	if !s.stepReady || seq != s.seq {
		return adc.ErrUnknownSequence
	}
	s.running = true
	return nil
}

func (s *rpSequencer) ClearStatus(seq adc.SequenceID) {
	s.armed = false
}

func (s *rpSequencer) Completed(seq adc.SequenceID) bool {
	return s.armed && rp.ADC.CS.HasBits(rp.ADC_CS_READY)
}

func (s *rpSequencer) Trigger(seq adc.SequenceID) error {
	if !s.running || seq != s.seq {
		return adc.ErrSequenceDisabled
	}
	rp.ADC.CS.SetBits(rp.ADC_CS_START_ONCE)
	s.armed = true
	return nil
}

func (s *rpSequencer) ReadResult(seq adc.SequenceID) (adc.RawSample, error) {
	if seq != s.seq {
		return 0, adc.ErrUnknownSequence
	}
	return adc.RawSample(rp.ADC.RESULT.Get() & 0xfff), nil
}
