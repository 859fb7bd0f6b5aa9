// Package expression turns per-frame face results into a display string
// and spoken feedback, speaking only when the dominant expression changes.
package expression

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-moodcam/pkg/perception"
)

// NoFaceText is displayed when a frame contains no face.
const NoFaceText = "No face detected"

// Speaker is the speech synthesizer used for feedback.
type Speaker interface {
	// Speak queues an utterance and returns without waiting for playback.
	Speak(text string)
	// CancelAll drops the in-flight utterance and anything queued.
	CancelAll()
}

// Phrase returns the spoken sentence for a label.
func Phrase(label perception.ExpressionLabel) string {
	return fmt.Sprintf("You look %s", label)
}

// DebounceState remembers the last label that was spoken.
type DebounceState struct {
	LastSpoken perception.ExpressionLabel
	Has        bool
}

// Result describes what Apply did with a frame.
type Result struct {
	Text       string
	Label      perception.ExpressionLabel
	Confidence string
	Spoke      bool
	Skipped    bool // Face provider failed; nothing changed
}

// Aggregator applies detection frames to the display text and debounce
// state. It is the only writer of its DebounceState.
type Aggregator struct {
	speaker Speaker
	logger  *slog.Logger

	mu       sync.Mutex
	state    DebounceState
	text     string
	onChange func(text string)
}

// New creates an aggregator speaking through speaker.
func New(speaker Speaker, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		speaker: speaker,
		logger:  logger.With("component", "expression"),
	}
}

// OnChange registers a callback invoked whenever the display text changes.
func (a *Aggregator) OnChange(fn func(text string)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onChange = fn
}

// Apply processes one frame. Only the first face is considered.
func (a *Aggregator) Apply(frame perception.DetectionFrame) Result {
	if !frame.FacesOK() {
		a.mu.Lock()
		text := a.text
		a.mu.Unlock()
		return Result{Text: text, Skipped: true}
	}

	if len(frame.Faces) == 0 {
		a.mu.Lock()
		a.state = DebounceState{}
		notify := a.setText(NoFaceText)
		a.mu.Unlock()
		notify()
		return Result{Text: NoFaceText}
	}

	label, score, ok := frame.Faces[0].Expressions.Top()
	if !ok {
		// A face with no scores carries nothing to announce.
		a.mu.Lock()
		text := a.text
		a.mu.Unlock()
		return Result{Text: text, Skipped: true}
	}

	conf := perception.FormatConfidence(score)
	text := fmt.Sprintf("%s (%s)", label, conf)

	a.mu.Lock()
	speak := !a.state.Has || a.state.LastSpoken != label
	a.state = DebounceState{LastSpoken: label, Has: true}
	notify := a.setText(text)
	a.mu.Unlock()

	if speak && a.speaker != nil {
		a.speaker.CancelAll()
		a.speaker.Speak(Phrase(label))
		a.logger.Debug("expression changed", "label", label, "confidence", conf)
	}
	notify()

	return Result{Text: text, Label: label, Confidence: conf, Spoke: speak}
}

// Reset clears the display text and the debounce state.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.state = DebounceState{}
	notify := a.setText("")
	a.mu.Unlock()
	notify()
}

// Text returns the current display text.
func (a *Aggregator) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.text
}

// State returns a copy of the debounce state.
func (a *Aggregator) State() DebounceState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// setText must be called with mu held. The returned func fires the change
// callback and must be called after unlocking.
func (a *Aggregator) setText(text string) func() {
	if text == a.text {
		return func() {}
	}
	a.text = text
	fn := a.onChange
	if fn == nil {
		return func() {}
	}
	return func() { fn(text) }
}
