package adc

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantSeq SequenceID
		wantRaw RawSample
		wantErr bool
	}{
		{name: "valid", line: "3,2048", wantSeq: 3, wantRaw: 2048},
		{name: "zero", line: "0,0", wantSeq: 0, wantRaw: 0},
		{name: "max", line: "1,4095", wantSeq: 1, wantRaw: 4095},
		{name: "invalid - missing field", line: "3", wantErr: true},
		{name: "invalid - too many fields", line: "3,1,2", wantErr: true},
		{name: "invalid - non-numeric sequence", line: "x,2048", wantErr: true},
		{name: "invalid - sequence overflow", line: "300,2048", wantErr: true},
		{name: "invalid - non-numeric reading", line: "3,abc", wantErr: true},
		{name: "invalid - reading out of range", line: "3,5000", wantErr: true},
		{name: "invalid - negative reading", line: "3,-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, raw, err := parseLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSeq, seq)
			assert.Equal(t, tt.wantRaw, raw)
		})
	}
}

func TestNewSerial_Defaults(t *testing.T) {
	dev := NewSerial("/dev/ttyACM0", 0, nil)
	require.NotNil(t, dev)
	assert.Equal(t, DefaultBaudRate, dev.baudRate)
	assert.False(t, dev.IsConnected())
}

func TestSerial_NotConnected(t *testing.T) {
	dev := NewSerial("/dev/ttyACM0", 9600, nil)

	assert.ErrorIs(t, dev.EnableADC(), ErrNotConnected)
	assert.ErrorIs(t, dev.Trigger(3), ErrUnknownSequence)
	assert.False(t, dev.Completed(3))
	assert.NoError(t, dev.Close())
}

// fakePeer answers every trigger with the next scripted code.
func fakePeer(t *testing.T, conn net.Conn, codes []string, got chan<- string) {
	t.Helper()
	go func() {
		scanner := bufio.NewScanner(conn)
		next := 0
		for scanner.Scan() {
			line := scanner.Text()
			got <- line
			if strings.HasPrefix(line, "T") && next < len(codes) {
				if _, err := conn.Write([]byte(strings.TrimPrefix(line, "T") + "," + codes[next] + "\n")); err != nil {
					return
				}
				next++
			}
		}
	}()
}

func TestSerial_Cycle(t *testing.T) {
	client, peer := net.Pipe()
	defer peer.Close()

	got := make(chan string, 16)
	fakePeer(t, peer, []string{"819", "0"}, got)

	dev := NewSerial("pipe", 0, nil)
	require.NoError(t, dev.attach(client))
	assert.True(t, dev.IsConnected())
	assert.Error(t, dev.attach(client), "second attach must fail")

	require.NoError(t, dev.EnableADC())
	require.NoError(t, dev.ConfigureSequencer(3, TriggerProcessor, 0))
	require.NoError(t, dev.ConfigureStep(3, 0, ChannelTempSensor, StepInterrupt|StepEnd))
	require.NoError(t, dev.EnableSequencer(3))

	for _, want := range []string{"E", "C3,0,0", "S3,0,128,3", "N3"} {
		assert.Equal(t, want, <-got)
	}

	_, err := dev.ReadResult(3)
	assert.ErrorIs(t, err, ErrNoResult)

	for _, want := range []RawSample{819, 0} {
		dev.ClearStatus(3)
		require.NoError(t, dev.Trigger(3))
		assert.Equal(t, "T3", <-got)
		require.Eventually(t, func() bool { return dev.Completed(3) }, time.Second, time.Millisecond)
		dev.ClearStatus(3)
		assert.False(t, dev.Completed(3))

		raw, err := dev.ReadResult(3)
		require.NoError(t, err)
		assert.Equal(t, want, raw)
	}

	require.NoError(t, dev.Close())
	assert.False(t, dev.IsConnected())
	assert.NoError(t, dev.Close())
}

func TestSerial_IgnoresGarbage(t *testing.T) {
	client, peer := net.Pipe()
	defer peer.Close()

	dev := NewSerial("pipe", 0, nil)
	require.NoError(t, dev.attach(client))

	go func() {
		scanner := bufio.NewScanner(peer)
		for scanner.Scan() {
		}
	}()
	require.NoError(t, dev.ConfigureSequencer(3, TriggerProcessor, 0))

	_, err := peer.Write([]byte("garbage\n3,9999\n\n7,12\n3,42\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return dev.Completed(3) }, time.Second, time.Millisecond)
	raw, err := dev.ReadResult(3)
	require.NoError(t, err)
	assert.Equal(t, RawSample(42), raw)

	require.NoError(t, dev.Close())
}
