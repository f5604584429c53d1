package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// SimpleSpinner draws a spinner on one terminal line until stopped. It is
// used for the phases before the live call view takes over.
type SimpleSpinner struct {
	w        io.Writer
	spinner  spinner.Spinner
	interval time.Duration

	mu      sync.Mutex
	message string
	started bool

	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewConnectionSpinner creates a spinner for network operations (Globe style)
func NewConnectionSpinner(w io.Writer, message string) *SimpleSpinner {
	return &SimpleSpinner{
		w:        w,
		message:  message,
		spinner:  spinner.Globe,
		interval: 180 * time.Millisecond,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// NewWaitingSpinner creates a spinner for waiting on the relay (Points style)
func NewWaitingSpinner(w io.Writer, message string) *SimpleSpinner {
	return &SimpleSpinner{
		w:        w,
		message:  message,
		spinner:  spinner.Points,
		interval: 100 * time.Millisecond,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (s *SimpleSpinner) Start() {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	go func() {
		defer close(s.stopped)
		frames := s.spinner.Frames
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for i := 0; ; i++ {
			s.mu.Lock()
			fmt.Fprintf(s.w, "\r%s %s", SpinnerStyle.Render(frames[i%len(frames)]), s.message)
			s.mu.Unlock()

			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop clears the spinner line. It is safe to call more than once.
func (s *SimpleSpinner) Stop() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if started {
			<-s.stopped
		}
		fmt.Fprint(s.w, "\r\033[K")
	})
}

func (s *SimpleSpinner) Success(message string) {
	s.Stop()
	PrintSuccess(s.w, message)
}

func (s *SimpleSpinner) Error(message string) {
	s.Stop()
	PrintError(s.w, message)
}

func (s *SimpleSpinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// RunConnectionSpinner starts a connection spinner and returns a stop function
func RunConnectionSpinner(w io.Writer, message string) func() {
	sp := NewConnectionSpinner(w, message)
	sp.Start()
	return sp.Stop
}
