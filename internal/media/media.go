// Package media owns the local audio and video tracks a participant sends.
// Capturing from real devices happens behind Source.
package media

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
)

// ErrAcquisitionFailed means no local stream could be produced. The call is
// aborted before any relay traffic.
var ErrAcquisitionFailed = errors.New("media acquisition failed")

// Constraints selects which kinds of media to acquire.
type Constraints struct {
	Audio bool
	Video bool
}

// Source produces local streams.
type Source interface {
	Acquire(ctx context.Context, c Constraints) (*Stream, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, c Constraints) (*Stream, error)

func (f SourceFunc) Acquire(ctx context.Context, c Constraints) (*Stream, error) {
	return f(ctx, c)
}

// Stream is a set of local tracks with per-kind enable flags. A disabled
// kind keeps its track but writes nothing.
type Stream struct {
	audio *webrtc.TrackLocalStaticSample
	video *webrtc.TrackLocalStaticSample

	mu           sync.Mutex
	audioEnabled bool
	videoEnabled bool

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewStream creates tracks for the kinds c asks for, all enabled.
func NewStream(c Constraints, streamID string) (*Stream, error) {
	if !c.Audio && !c.Video {
		return nil, fmt.Errorf("%w: no audio or video requested", ErrAcquisitionFailed)
	}

	s := &Stream{stop: make(chan struct{})}
	if c.Audio {
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
			"audio", streamID)
		if err != nil {
			return nil, fmt.Errorf("%w: audio track: %w", ErrAcquisitionFailed, err)
		}
		s.audio = track
		s.audioEnabled = true
	}
	if c.Video {
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
			"video", streamID)
		if err != nil {
			return nil, fmt.Errorf("%w: video track: %w", ErrAcquisitionFailed, err)
		}
		s.video = track
		s.videoEnabled = true
	}
	return s, nil
}

// Tracks returns the tracks to attach to each peer connection.
func (s *Stream) Tracks() []webrtc.TrackLocal {
	var tracks []webrtc.TrackLocal
	if s.audio != nil {
		tracks = append(tracks, s.audio)
	}
	if s.video != nil {
		tracks = append(tracks, s.video)
	}
	return tracks
}

func (s *Stream) HasAudio() bool { return s.audio != nil }
func (s *Stream) HasVideo() bool { return s.video != nil }

// AudioEnabled reports whether audio is being sent.
func (s *Stream) AudioEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioEnabled
}

// VideoEnabled reports whether video is being sent.
func (s *Stream) VideoEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoEnabled
}

// ToggleAudio flips the audio flag and returns the new value. Without an
// audio track it stays false.
func (s *Stream) ToggleAudio() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.audio != nil {
		s.audioEnabled = !s.audioEnabled
	}
	return s.audioEnabled
}

// ToggleVideo flips the video flag and returns the new value.
func (s *Stream) ToggleVideo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.video != nil {
		s.videoEnabled = !s.videoEnabled
	}
	return s.videoEnabled
}

// WriteAudio sends an audio sample unless audio is disabled.
func (s *Stream) WriteAudio(sample pionmedia.Sample) error {
	if s.audio == nil || !s.AudioEnabled() {
		return nil
	}
	return s.audio.WriteSample(sample)
}

// WriteVideo sends a video sample unless video is disabled.
func (s *Stream) WriteVideo(sample pionmedia.Sample) error {
	if s.video == nil || !s.VideoEnabled() {
		return nil
	}
	return s.video.WriteSample(sample)
}

// Close stops any generator feeding the stream.
func (s *Stream) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// opusSilence is a single 20 ms Opus frame of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

const frameDuration = 20 * time.Millisecond

// SilenceSource produces a stream whose audio track carries Opus silence,
// for terminals without capture devices. Video, if requested, has a track
// but no frames.
type SilenceSource struct {
	StreamID string
}

func (src SilenceSource) Acquire(ctx context.Context, c Constraints) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAcquisitionFailed, err)
	}
	id := src.StreamID
	if id == "" {
		id = "warpcall"
	}
	s, err := NewStream(c, id)
	if err != nil {
		return nil, err
	}
	if s.audio != nil {
		s.wg.Add(1)
		go s.generateSilence()
	}
	return s, nil
}

func (s *Stream) generateSilence() {
	defer s.wg.Done()
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			_ = s.WriteAudio(pionmedia.Sample{Data: opusSilence, Duration: frameDuration})
		}
	}
}
