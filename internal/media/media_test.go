package media

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStream(t *testing.T) {
	s, err := NewStream(Constraints{Audio: true, Video: true}, "test")
	require.NoError(t, err)
	defer s.Close()

	tracks := s.Tracks()
	require.Len(t, tracks, 2)
	assert.Equal(t, "audio", tracks[0].ID())
	assert.Equal(t, "video", tracks[1].ID())
	assert.Equal(t, "test", tracks[0].StreamID())
	assert.True(t, s.AudioEnabled())
	assert.True(t, s.VideoEnabled())
}

func TestNothingRequested(t *testing.T) {
	_, err := NewStream(Constraints{}, "test")
	assert.ErrorIs(t, err, ErrAcquisitionFailed)
}

func TestToggle(t *testing.T) {
	s, err := NewStream(Constraints{Audio: true}, "test")
	require.NoError(t, err)

	assert.False(t, s.ToggleAudio())
	assert.False(t, s.AudioEnabled())
	assert.True(t, s.ToggleAudio())

	// No video track: the flag cannot be turned on.
	assert.False(t, s.HasVideo())
	assert.False(t, s.ToggleVideo())
	assert.False(t, s.VideoEnabled())
}

func TestSilenceSource(t *testing.T) {
	s, err := SilenceSource{}.Acquire(context.Background(), Constraints{Audio: true})
	require.NoError(t, err)
	assert.Len(t, s.Tracks(), 1)
	s.Close()
	s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = SilenceSource{}.Acquire(ctx, Constraints{Audio: true})
	assert.ErrorIs(t, err, ErrAcquisitionFailed)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSourceFunc(t *testing.T) {
	boom := errors.New("no camera")
	src := SourceFunc(func(context.Context, Constraints) (*Stream, error) {
		return nil, boom
	})
	_, err := src.Acquire(context.Background(), Constraints{Video: true})
	assert.ErrorIs(t, err, boom)
}
