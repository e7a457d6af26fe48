package console

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct {
	fail bool
	buf  bytes.Buffer
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.fail {
		return 0, errors.New("receiver not listening")
	}
	return w.buf.Write(p)
}

func TestWriter_WriteLine(t *testing.T) {
	tests := []struct {
		name string
		eol  string
		want string
	}{
		{"default ending", "", "Temperature  98 *C\nTemperature 147 *C\n"},
		{"carriage return", "\r", "Temperature  98 *C\rTemperature 147 *C\r"},
		{"crlf", "\r\n", "Temperature  98 *C\r\nTemperature 147 *C\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			c := NewWriter(&buf, tt.eol)
			require.NoError(t, c.WriteLine("Temperature  98 *C"))
			require.NoError(t, c.WriteLine("Temperature 147 *C"))
			assert.Equal(t, tt.want, buf.String())
			assert.Equal(t, 2, c.Lines())
		})
	}
}

func TestWriter_ErrorIsStickyUntilCleared(t *testing.T) {
	w := &failingWriter{fail: true}
	c := NewWriter(w, "\n")

	err := c.WriteLine("lost")
	require.Error(t, err)
	assert.ErrorIs(t, c.Err(), err)
	assert.Zero(t, c.Lines())

	w.fail = false
	require.NoError(t, c.WriteLine("kept"))
	assert.Error(t, c.Err(), "error survives a later successful write")

	c.ClearStatus()
	assert.NoError(t, c.Err())
	assert.Equal(t, "kept\n", w.buf.String())
}
