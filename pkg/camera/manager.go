package camera

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// State is the lifecycle state of the camera.
type State int

// Lifecycle states. Transitions: Off -> Starting -> On -> Stopping -> Off,
// and Starting -> Off when acquisition fails or is cancelled.
const (
	Off State = iota
	Starting
	On
	Stopping
)

func (s State) String() string {
	switch s {
	case Off:
		return "off"
	case Starting:
		return "starting"
	case On:
		return "on"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Manager owns the camera session. Start and Stop are idempotent and safe
// to call from any goroutine.
type Manager struct {
	device Device
	logger *slog.Logger

	mu           sync.Mutex
	config       Config
	state        State
	generation   uint64
	session      *Session
	stopPending  bool
	onStart      []func(Session)
	onStop       []func()
	stateChanged []func(prev, next State)
}

// NewManager creates a manager using device and cfg.
func NewManager(device Device, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		device: device,
		config: cfg,
		logger: logger.With("component", "camera"),
	}
}

// OnStart registers a hook invoked after each successful start.
func (m *Manager) OnStart(fn func(Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStart = append(m.onStart, fn)
}

// OnStop registers a hook invoked after each completed stop.
func (m *Manager) OnStop(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStop = append(m.onStop, fn)
}

// OnStateChange registers a listener for every state transition.
func (m *Manager) OnStateChange(fn func(prev, next State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateChanged = append(m.stateChanged, fn)
}

// Start acquires the device and opens a new session. It returns
// ErrAlreadyActive when a session is starting or on, and an error matching
// ErrDeviceUnavailable when acquisition fails, in which case the state
// reverts to Off.
func (m *Manager) Start(ctx context.Context) (Session, error) {
	m.mu.Lock()
	if m.state != Off {
		state := m.state
		m.mu.Unlock()
		m.logger.Debug("start ignored", "state", state)
		return Session{}, ErrAlreadyActive
	}
	cfg := m.config
	m.stopPending = false
	notify := m.setState(Starting)
	m.mu.Unlock()
	notify()

	stream, err := m.device.Acquire(ctx, cfg)

	m.mu.Lock()
	if err != nil {
		notify = m.setState(Off)
		m.mu.Unlock()
		notify()
		m.logger.Warn("camera unavailable", "device", cfg.Device, "error", err)
		return Session{}, &DeviceError{Device: cfg.Device, Err: err}
	}
	if m.stopPending {
		m.stopPending = false
		notify = m.setState(Off)
		m.mu.Unlock()
		stream.Close()
		notify()
		return Session{}, ErrStartCancelled
	}

	m.generation++
	sess := Session{ID: uuid.New(), Generation: m.generation, Stream: stream}
	m.session = &sess
	notify = m.setState(On)
	hooks := append([]func(Session){}, m.onStart...)
	m.mu.Unlock()
	notify()

	w, h := stream.Size()
	m.logger.Info("camera started", "session", sess.ID, "generation", sess.Generation, "width", w, "height", h)
	for _, fn := range hooks {
		fn(sess)
	}
	return sess, nil
}

// Stop ends the active session: it invalidates the generation, releases
// the stream and runs the stop hooks. Stop while Off or Stopping returns
// ErrNotActive and does nothing. Stop while Starting cancels the start.
func (m *Manager) Stop() error {
	m.mu.Lock()
	switch m.state {
	case Off, Stopping:
		m.mu.Unlock()
		return ErrNotActive
	case Starting:
		m.stopPending = true
		m.mu.Unlock()
		return nil
	}

	sess := m.session
	m.session = nil
	m.generation++
	notify := m.setState(Stopping)
	m.mu.Unlock()
	notify()

	if err := sess.Stream.Close(); err != nil {
		m.logger.Warn("release stream", "session", sess.ID, "error", err)
	}

	m.mu.Lock()
	notify = m.setState(Off)
	hooks := append([]func(){}, m.onStop...)
	m.mu.Unlock()
	notify()

	for _, fn := range hooks {
		fn()
	}
	m.logger.Info("camera stopped", "session", sess.ID)
	return nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Generation returns the current generation token.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// IsCurrent reports whether gen belongs to the session that is on right now.
func (m *Manager) IsCurrent(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == On && m.session != nil && m.session.Generation == gen
}

// Session returns the active session, if any.
func (m *Manager) Session() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return Session{}, false
	}
	return *m.session, true
}

// setState must be called with mu held. The returned func notifies
// listeners and must be called after unlocking.
func (m *Manager) setState(next State) func() {
	prev := m.state
	m.state = next
	listeners := append([]func(prev, next State){}, m.stateChanged...)
	return func() {
		for _, fn := range listeners {
			fn(prev, next)
		}
	}
}

// GetConfig returns the capture configuration.
func (m *Manager) GetConfig() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// SetConfig replaces the capture configuration. It applies on next start.
func (m *Manager) SetConfig(cfg Config) error {
	if errors := cfg.Validate(); len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// UpdateConfig updates specific fields of the configuration.
// A "preset" key is applied first, then individual fields override it.
func (m *Manager) UpdateConfig(params map[string]interface{}) error {
	cfg := m.GetConfig()

	if presetName, ok := params["preset"].(string); ok {
		preset := GetPreset(presetName)
		if preset == nil {
			return fmt.Errorf("unknown preset: %s", presetName)
		}
		preset.Device, preset.Mirror = cfg.Device, cfg.Mirror
		cfg = *preset
	}

	for key, value := range params {
		switch key {
		case "device":
			switch v := value.(type) {
			case string:
				cfg.Device = v
			default:
				n, ok := toInt(v)
				if !ok || n < 0 {
					return fmt.Errorf("device must be an index or a path, got %v", value)
				}
				cfg.Device = strconv.Itoa(n)
			}
		case "width":
			if v, ok := toInt(value); ok {
				cfg.Width = v
			}
		case "height":
			if v, ok := toInt(value); ok {
				cfg.Height = v
			}
		case "framerate":
			if v, ok := toInt(value); ok {
				cfg.Framerate = v
			}
		case "quality":
			if v, ok := toInt(value); ok {
				cfg.Quality = v
			}
		case "mirror":
			if v, ok := value.(bool); ok {
				cfg.Mirror = v
			}
		}
	}

	return m.SetConfig(cfg)
}

// GetConfigJSON returns the current config as a map for JSON serialization.
func (m *Manager) GetConfigJSON() map[string]interface{} {
	data, _ := json.Marshal(m.GetConfig())
	var result map[string]interface{}
	json.Unmarshal(data, &result)
	return result
}

func toInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case json.Number:
		i, err := val.Int64()
		if err == nil {
			return int(i), true
		}
	}
	return 0, false
}
