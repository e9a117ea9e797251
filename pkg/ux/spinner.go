// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"sync"
	"time"
)

// SpinnerType selects the animation frame set.
type SpinnerType int

const (
	// SpinnerDots is the default braille animation.
	SpinnerDots SpinnerType = iota
	// SpinnerScan sweeps a marker across a short track, suited to content
	// scans and uploads.
	SpinnerScan
)

// frameSet returns the animation frames and the delay between them.
func (t SpinnerType) frameSet() ([]string, time.Duration) {
	switch t {
	case SpinnerScan:
		return []string{"[▰▱▱▱]", "[▱▰▱▱]", "[▱▱▰▱]", "[▱▱▱▰]", "[▱▱▰▱]", "[▱▰▱▱]"}, 120 * time.Millisecond
	default:
		return []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}, 80 * time.Millisecond
	}
}

// Spinner is an animated terminal activity indicator. In machine mode it
// degrades to a single PROGRESS line so piped output stays parseable.
type Spinner struct {
	message  string
	kind     SpinnerType
	quit     chan struct{}
	finished chan struct{}
	mu       sync.Mutex
	running  bool
	frame    int
}

// NewSpinner creates a spinner with the given message.
func NewSpinner(msg string) *Spinner {
	return &Spinner{
		message:  msg,
		kind:     SpinnerDots,
		quit:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// WithType sets the animation frame set and returns the spinner for
// chaining.
func (s *Spinner) WithType(kind SpinnerType) *Spinner {
	s.kind = kind
	return s
}

// Start begins the animation. Calling Start on a running spinner is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	if GetPersonality().Level == PersonalityMachine {
		fmt.Printf("PROGRESS: %s\n", s.message)
		return
	}

	go func() {
		frames, interval := s.kind.frameSet()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.quit:
				// Erase the in-place animation frame.
				fmt.Print("\r\033[K")
				close(s.finished)
				return
			case <-ticker.C:
				s.mu.Lock()
				msg := s.message
				s.mu.Unlock()
				glyph := Styles.Highlight.Render(frames[s.frame])
				fmt.Printf("\r%s %s", glyph, msg)
				s.frame = (s.frame + 1) % len(frames)
			}
		}
	}()
}

// Stop halts the animation and clears the line. Safe to call on a spinner
// that never started.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	if GetPersonality().Level == PersonalityMachine {
		return
	}

	close(s.quit)
	<-s.finished
}

// UpdateMessage changes the message while the spinner runs.
func (s *Spinner) UpdateMessage(msg string) {
	s.mu.Lock()
	s.message = msg
	s.mu.Unlock()
}

// StopWithSuccess stops the spinner and prints a success line.
func (s *Spinner) StopWithSuccess(msg string) {
	s.Stop()
	Success(msg)
}

// StopWithError stops the spinner and prints an error line.
func (s *Spinner) StopWithError(msg string) {
	s.Stop()
	Error(msg)
}

// StopWithWarning stops the spinner and prints a warning line.
func (s *Spinner) StopWithWarning(msg string) {
	s.Stop()
	Warning(msg)
}

// WithSpinner runs fn under a spinner and reports its outcome.
func WithSpinner(msg string, fn func() error) error {
	sp := NewSpinner(msg)
	sp.Start()

	if err := fn(); err != nil {
		sp.StopWithError(fmt.Sprintf("%s: %v", msg, err))
		return err
	}

	sp.StopWithSuccess(msg)
	return nil
}

// ProgressSpinner is a spinner with a step counter appended to its message.
type ProgressSpinner struct {
	*Spinner
	base    string
	current int
	total   int
}

// NewProgressSpinner creates a spinner that renders "<message> [n/total]".
func NewProgressSpinner(msg string, steps int) *ProgressSpinner {
	return &ProgressSpinner{
		Spinner: NewSpinner(msg),
		base:    msg,
		total:   steps,
	}
}

// Increment advances the step counter by one.
func (p *ProgressSpinner) Increment() {
	p.mu.Lock()
	p.current++
	p.render()
	p.mu.Unlock()
}

// SetProgress sets the step counter.
func (p *ProgressSpinner) SetProgress(n int) {
	p.mu.Lock()
	p.current = n
	p.render()
	p.mu.Unlock()
}

// render rebuilds the message from the base. Callers hold p.mu.
func (p *ProgressSpinner) render() {
	if GetPersonality().Level == PersonalityMachine {
		return
	}
	p.message = fmt.Sprintf("%s [%d/%d]", p.base, p.current, p.total)
}
