package devicelink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ctdlog/internal/ctd"
	"github.com/banshee-data/ctdlog/internal/timeutil"
)

func TestSimulator_SpeaksProtocol(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	n := uint16(0)
	sim := NewSimulator(func() ctd.RawSample {
		n++
		return ctd.RawSample{T: 2000 + n, P: 1500, C: 2100}
	})
	sim.Clock = clock
	sim.DropEvery = 3

	s, err := Open("sim", PortOptions{}, sim.Opener())
	require.NoError(t, err)
	require.NoError(t, s.Handshake())

	var frames [][]byte
	for i := 0; i < 3; i++ {
		f, err := s.RequestSample()
		require.NoError(t, err)
		frames = append(frames, f)
	}

	raw, err := ctd.Decode(frames[0])
	require.NoError(t, err)
	assert.Equal(t, ctd.RawSample{T: 2001, P: 1500, C: 2100}, raw)

	raw, err = ctd.Decode(frames[1])
	require.NoError(t, err)
	assert.Equal(t, uint16(2002), raw.T)

	assert.Len(t, frames[2], 3, "every third frame is truncated")
	assert.Equal(t, 3, sim.Samples())

	// Each frame read ends by waiting out the read timeout.
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second}, clock.Sleeps())

	require.NoError(t, s.Close())
	_, err = sim.Write([]byte{CmdWake})
	assert.Error(t, err)
}
