//go:build !tinygo

package adc

import (
	"fmt"
	"sync"

	"github.com/chewxy/math32"

	"github.com/itohio/gotemp/pkg/config"
)

// Op names recorded in the Sim call log.
const (
	OpTrigger   = "trigger"
	OpCompleted = "completed"
	OpClear     = "clear"
	OpRead      = "read"
)

var _ Sequencer = (*Sim)(nil)

// Call is one recorded operation against a Sim.
type Call struct {
	Op  string
	Seq SequenceID
	OK  bool // result of Completed; true for other ops that succeeded
}

type simStep struct {
	ch    Channel
	flags StepFlags
}

type simSequence struct {
	trigger  Trigger
	priority uint8
	steps    map[StepID]simStep
	enabled  bool

	converting bool
	countdown  int
	flag       bool
	result     RawSample
	hasResult  bool
	unread     bool
}

// Sim simulates an ADC with sample sequencers. Conversions either replay a
// scripted list of codes or follow a noisy on-die temperature model.
type Sim struct {
	cfg *config.SimConfig

	mu        sync.Mutex
	enabled   bool
	sequences map[SequenceID]*simSequence
	scriptPos int
	samples   int
	overruns  int
	calls     []Call
}

// NewSim creates a simulated converter.
func NewSim(cfg *config.SimConfig) *Sim {
	if cfg == nil {
		cfg = &config.SimConfig{
			DieTemperature: 25.0,
			NoiseLevel:     0.5,
			Latency:        2,
		}
	}

	return &Sim{
		cfg:       cfg,
		sequences: make(map[SequenceID]*simSequence),
	}
}

// EnableADC powers the simulated converter. Calling it again is harmless.
func (s *Sim) EnableADC() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = true
	return nil
}

// ConfigureSequencer sets the trigger source of a sequence. It resets any
// previously configured steps.
func (s *Sim) ConfigureSequencer(seq SequenceID, trigger Trigger, priority uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return ErrNotEnabled
	}
	s.sequences[seq] = &simSequence{
		trigger:  trigger,
		priority: priority,
		steps:    make(map[StepID]simStep),
	}
	return nil
}

// ConfigureStep sets the channel and flags of one step.
func (s *Sim) ConfigureStep(seq SequenceID, step StepID, ch Channel, flags StepFlags) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sq, ok := s.sequences[seq]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownSequence, seq)
	}
	sq.steps[step] = simStep{ch: ch, flags: flags}
	return nil
}

// EnableSequencer arms a configured sequence.
func (s *Sim) EnableSequencer(seq SequenceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sq, ok := s.sequences[seq]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownSequence, seq)
	}
	if len(sq.steps) == 0 {
		return fmt.Errorf("sequence %d has no steps", seq)
	}
	sq.enabled = true
	return nil
}

// ClearStatus clears the completion flag of a sequence.
func (s *Sim) ClearStatus(seq SequenceID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{Op: OpClear, Seq: seq, OK: true})
	if sq, ok := s.sequences[seq]; ok {
		sq.flag = false
	}
}

// Completed reports the completion flag. A triggered conversion takes
// Latency polls before the flag is raised; a stuck Sim never raises it.
func (s *Sim) Completed(seq SequenceID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	done := s.completed(seq)
	s.calls = append(s.calls, Call{Op: OpCompleted, Seq: seq, OK: done})
	return done
}

func (s *Sim) completed(seq SequenceID) bool {
	sq, ok := s.sequences[seq]
	if !ok || s.cfg.Stuck {
		return false
	}
	if sq.converting {
		if sq.countdown > 0 {
			sq.countdown--
			return false
		}
		sq.converting = false
		sq.result = s.nextSample()
		sq.hasResult = true
		if sq.interruptEnabled() {
			sq.flag = true
		}
	}
	return sq.flag
}

func (sq *simSequence) interruptEnabled() bool {
	for _, st := range sq.steps {
		if st.flags&StepInterrupt != 0 {
			return true
		}
	}
	return false
}

// Trigger starts one conversion on an enabled sequence with a processor trigger.
func (s *Sim) Trigger(seq SequenceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sq, ok := s.sequences[seq]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownSequence, seq)
	}
	if !sq.enabled {
		return fmt.Errorf("%w: %d", ErrSequenceDisabled, seq)
	}
	if sq.trigger != TriggerProcessor {
		return fmt.Errorf("sequence %d is not processor triggered", seq)
	}
	if sq.converting || sq.unread {
		s.overruns++
	}

	s.calls = append(s.calls, Call{Op: OpTrigger, Seq: seq, OK: true})
	sq.converting = true
	sq.countdown = s.cfg.Latency
	sq.unread = true
	return nil
}

// ReadResult returns the last converted code of a sequence.
func (s *Sim) ReadResult(seq SequenceID) (RawSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sq, ok := s.sequences[seq]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownSequence, seq)
	}
	if !sq.hasResult {
		return 0, ErrNoResult
	}
	s.calls = append(s.calls, Call{Op: OpRead, Seq: seq, OK: true})
	sq.unread = false
	return sq.result, nil
}

// Calls returns a copy of the recorded operations.
func (s *Sim) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Overruns counts triggers issued while a previous conversion was still outstanding.
func (s *Sim) Overruns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overruns
}

// nextSample returns the next scripted code, or a modelled one once the
// script is exhausted.
func (s *Sim) nextSample() RawSample {
	s.samples++
	if s.scriptPos < len(s.cfg.Script) {
		v := s.cfg.Script[s.scriptPos]
		s.scriptPos++
		if v > uint16(MaxRaw) {
			v = uint16(MaxRaw)
		}
		return RawSample(v)
	}

	n := float32(s.samples)
	noise := (math32.Sin(n*0.7) + math32.Cos(n*1.3)) * float32(s.cfg.NoiseLevel) * 0.5
	return CodeForTemperature(float32(s.cfg.DieTemperature) + noise)
}

// CodeForTemperature inverts the uncalibrated sensor equation in float32,
// giving the nearest code the sensor would produce at celsius.
func CodeForTemperature(celsius float32) RawSample {
	const slope float32 = 75 * 3.3
	code := math32.Round((147.5 - celsius) * 4096 / slope)
	if code < 0 {
		return 0
	}
	if code > float32(MaxRaw) {
		return MaxRaw
	}
	return RawSample(code)
}
