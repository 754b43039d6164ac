package robot

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// PositionData is the client-facing position shape.
type PositionData struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// StatusData is an atomic snapshot of the full robot state.
type StatusData struct {
	Position      PositionData `json:"position"`
	IsConnected   bool         `json:"is_connected"`
	IsCalibrated  bool         `json:"is_calibrated"`
	EmergencyStop bool         `json:"emergency_stop"`
	SystemActive  bool         `json:"system_active"`
}

// State is the shared record of position and safety flags. All fields are
// read and written under one mutex so no observer ever sees a position from
// one moment paired with flags from another. The emergency latch forces
// active=false at every mutation site.
type State struct {
	mu            sync.Mutex
	pos           mgl64.Vec3
	connected     bool
	calibrated    bool
	emergencyStop bool
	active        bool
}

// NewState returns a state at the given home position with all flags down.
func NewState(home mgl64.Vec3) *State {
	return &State{pos: home}
}

// Status returns a consistent snapshot of every field.
func (s *State) Status() (status StatusData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status.Position = PositionData{s.pos.X(), s.pos.Y(), s.pos.Z()}
	status.IsConnected = s.connected
	status.IsCalibrated = s.calibrated
	status.EmergencyStop = s.emergencyStop
	status.SystemActive = s.active && !s.emergencyStop
	return status
}

func (s *State) Position() mgl64.Vec3 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *State) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active && !s.emergencyStop
}

// SetPosition overwrites the position with a hardware-reported value.
func (s *State) SetPosition(pos mgl64.Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = pos
}

func (s *State) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
}

func (s *State) SetCalibrated(calibrated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calibrated = calibrated
}

// Activate raises the active flag. It reports false, without mutating, while
// the emergency latch is set.
func (s *State) Activate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emergencyStop {
		return false
	}
	s.active = true
	return true
}

func (s *State) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

// LatchEmergency sets the latch and drops the active flag in one critical
// section. Idempotent.
func (s *State) LatchEmergency() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emergencyStop = true
	s.active = false
}

// ClearEmergency releases the latch and marks the system active. Only the
// hardware report path calls this; no client command clears the latch.
func (s *State) ClearEmergency() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emergencyStop = false
	s.active = true
}
