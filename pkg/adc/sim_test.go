package adc

import (
	"testing"

	"github.com/itohio/gotemp/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSim(t *testing.T, cfg *config.SimConfig, seq SequenceID) *Sim {
	t.Helper()
	s := NewSim(cfg)
	require.NoError(t, s.EnableADC())
	require.NoError(t, s.ConfigureSequencer(seq, TriggerProcessor, 0))
	require.NoError(t, s.ConfigureStep(seq, 0, ChannelTempSensor, StepInterrupt|StepEnd))
	require.NoError(t, s.EnableSequencer(seq))
	return s
}

func TestNewSim_NilConfig(t *testing.T) {
	s := NewSim(nil)
	require.NotNil(t, s)
	assert.Equal(t, 25.0, s.cfg.DieTemperature)
	assert.Equal(t, 2, s.cfg.Latency)
}

func TestSim_SetupOrder(t *testing.T) {
	s := NewSim(nil)

	err := s.ConfigureSequencer(3, TriggerProcessor, 0)
	assert.ErrorIs(t, err, ErrNotEnabled)

	require.NoError(t, s.EnableADC())
	require.NoError(t, s.EnableADC())

	assert.ErrorIs(t, s.ConfigureStep(3, 0, ChannelTempSensor, StepEnd), ErrUnknownSequence)
	assert.ErrorIs(t, s.EnableSequencer(3), ErrUnknownSequence)

	require.NoError(t, s.ConfigureSequencer(3, TriggerProcessor, 0))
	assert.Error(t, s.EnableSequencer(3), "sequence without steps must not be enabled")
	assert.ErrorIs(t, s.Trigger(3), ErrSequenceDisabled)

	require.NoError(t, s.ConfigureStep(3, 0, ChannelTempSensor, StepInterrupt|StepEnd))
	require.NoError(t, s.EnableSequencer(3))
	assert.NoError(t, s.Trigger(3))
}

func TestSim_TriggerRequiresProcessorTrigger(t *testing.T) {
	s := NewSim(nil)
	require.NoError(t, s.EnableADC())
	require.NoError(t, s.ConfigureSequencer(1, TriggerTimer, 0))
	require.NoError(t, s.ConfigureStep(1, 0, ChannelTempSensor, StepInterrupt|StepEnd))
	require.NoError(t, s.EnableSequencer(1))

	assert.Error(t, s.Trigger(1))
}

func TestSim_LatencyAndScript(t *testing.T) {
	s := setupSim(t, &config.SimConfig{Latency: 3, Script: []uint16{819, 0}}, 3)

	_, err := s.ReadResult(3)
	assert.ErrorIs(t, err, ErrNoResult)

	require.NoError(t, s.Trigger(3))
	for i := 0; i < 3; i++ {
		assert.False(t, s.Completed(3), "poll %d", i)
	}
	assert.True(t, s.Completed(3))
	assert.True(t, s.Completed(3), "flag stays set until cleared")

	s.ClearStatus(3)
	assert.False(t, s.Completed(3))

	raw, err := s.ReadResult(3)
	require.NoError(t, err)
	assert.Equal(t, RawSample(819), raw)

	require.NoError(t, s.Trigger(3))
	for !s.Completed(3) {
	}
	s.ClearStatus(3)
	raw, err = s.ReadResult(3)
	require.NoError(t, err)
	assert.Equal(t, RawSample(0), raw)
	assert.Zero(t, s.Overruns())
}

func TestSim_ScriptClampsToMaxRaw(t *testing.T) {
	s := setupSim(t, &config.SimConfig{Script: []uint16{9000}}, 0)

	require.NoError(t, s.Trigger(0))
	require.True(t, s.Completed(0))
	raw, err := s.ReadResult(0)
	require.NoError(t, err)
	assert.Equal(t, MaxRaw, raw)
}

func TestSim_ModelAfterScript(t *testing.T) {
	s := setupSim(t, &config.SimConfig{DieTemperature: 25, NoiseLevel: 0}, 3)

	require.NoError(t, s.Trigger(3))
	require.True(t, s.Completed(3))
	raw, err := s.ReadResult(3)
	require.NoError(t, err)
	assert.Equal(t, CodeForTemperature(25), raw)
}

func TestSim_Stuck(t *testing.T) {
	s := setupSim(t, &config.SimConfig{Stuck: true}, 3)

	require.NoError(t, s.Trigger(3))
	for i := 0; i < 100; i++ {
		require.False(t, s.Completed(3))
	}
}

func TestSim_NoInterruptFlag(t *testing.T) {
	s := NewSim(&config.SimConfig{})
	require.NoError(t, s.EnableADC())
	require.NoError(t, s.ConfigureSequencer(3, TriggerProcessor, 0))
	require.NoError(t, s.ConfigureStep(3, 0, ChannelTempSensor, StepEnd))
	require.NoError(t, s.EnableSequencer(3))

	require.NoError(t, s.Trigger(3))
	assert.False(t, s.Completed(3), "completion flag needs StepInterrupt")
}

func TestSim_Overruns(t *testing.T) {
	s := setupSim(t, &config.SimConfig{Latency: 5}, 3)

	require.NoError(t, s.Trigger(3))
	require.NoError(t, s.Trigger(3))
	assert.Equal(t, 1, s.Overruns())
}

func TestSim_Calls(t *testing.T) {
	s := setupSim(t, &config.SimConfig{Latency: 1, Script: []uint16{100}}, 2)

	s.ClearStatus(2)
	require.NoError(t, s.Trigger(2))
	s.Completed(2)
	s.Completed(2)
	s.ClearStatus(2)
	_, err := s.ReadResult(2)
	require.NoError(t, err)

	want := []Call{
		{Op: OpClear, Seq: 2, OK: true},
		{Op: OpTrigger, Seq: 2, OK: true},
		{Op: OpCompleted, Seq: 2, OK: false},
		{Op: OpCompleted, Seq: 2, OK: true},
		{Op: OpClear, Seq: 2, OK: true},
		{Op: OpRead, Seq: 2, OK: true},
	}
	assert.Equal(t, want, s.Calls())
}

func TestCodeForTemperature(t *testing.T) {
	tests := []struct {
		name    string
		celsius float32
		want    RawSample
	}{
		{"max temperature", 147.5, 0},
		{"above range", 200, 0},
		{"below range", -200, MaxRaw},
		{"rounds up to nearest code", 98.0125, 819},
		{"rounds down to nearest code", 25, 2027},
		{"bottom of range", -99.94, MaxRaw},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeForTemperature(tt.celsius))
		})
	}
}

func TestSim_ModelNoiseBounded(t *testing.T) {
	const die, level = 30.0, 2.0
	s := setupSim(t, &config.SimConfig{DieTemperature: die, NoiseLevel: level}, 3)

	lo, hi := CodeForTemperature(die+level), CodeForTemperature(die-level)
	seen := map[RawSample]bool{}
	for i := 0; i < 50; i++ {
		require.NoError(t, s.Trigger(3))
		require.True(t, s.Completed(3))
		raw, err := s.ReadResult(3)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, raw, lo)
		assert.LessOrEqual(t, raw, hi)
		seen[raw] = true
	}
	assert.Greater(t, len(seen), 1, "noise should vary the code")
}
