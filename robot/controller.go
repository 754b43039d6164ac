package robot

import (
	"fmt"
	"log"

	"github.com/go-gl/mathgl/mgl64"
)

// Controller is the single authoritative point turning a validated intent
// into a hardware command and a state mutation. Client-initiated moves are
// only proposals; the authoritative position is whatever the hardware
// reports back through the link.
type Controller struct {
	state  *State
	link   Link
	limits WorkspaceLimits
	home   mgl64.Vec3
}

func NewController(config Config, state *State, link Link) *Controller {
	return &Controller{
		state:  state,
		link:   link,
		limits: config.Workspace,
		home:   config.HomeVec(),
	}
}

// MoveTo validates a move against the safety flags and workspace limits and
// forwards it to the hardware. A rejected move sends nothing and mutates
// nothing.
func (c *Controller) MoveTo(x, y, z float64) error {
	status := c.state.Status()
	if status.EmergencyStop {
		return ErrEmergencyLatched
	}
	if !status.SystemActive {
		return ErrInactive
	}

	target := mgl64.Vec3{x, y, z}
	if err := c.limits.Check(target); err != nil {
		log.Printf("rejecting move: %v", err)
		return err
	}

	return c.link.SendCommand(fmt.Sprintf("MOVE:%.3f,%.3f,%.3f", x, y, z))
}

// Activate raises the active flag and tells the hardware. Rejected while the
// emergency latch is set.
func (c *Controller) Activate() error {
	if !c.state.Activate() {
		return ErrEmergencyLatched
	}
	return c.link.SendCommand("ACTIVATE")
}

// Deactivate always succeeds locally; a failed send is logged but does not
// undo the local flag.
func (c *Controller) Deactivate() {
	c.state.Deactivate()
	if err := c.link.SendCommand("DEACTIVATE"); err != nil {
		log.Printf("deactivate not delivered to hardware: %v", err)
	}
}

// EmergencyStop latches the safety flags before anything touches the wire,
// so the local state is stopped even if the hardware is unreachable.
// Idempotent.
func (c *Controller) EmergencyStop() {
	c.state.LatchEmergency()
	if err := c.link.SendCommand("EMERGENCY_STOP"); err != nil {
		log.Printf("emergency stop not delivered to hardware: %v", err)
	}
}

// Home moves to the configured home position under the same policy as MoveTo.
func (c *Controller) Home() error {
	return c.MoveTo(c.home.X(), c.home.Y(), c.home.Z())
}

// Calibrate asks the hardware to establish its reference origin. The
// acknowledgment arrives asynchronously as a CALIBRATED report.
func (c *Controller) Calibrate() error {
	return c.link.SendCommand("CALIBRATE")
}

// QueryPosition requests a position report; the answer arrives through the
// reader loop like any other report.
func (c *Controller) QueryPosition() error {
	return c.link.SendCommand("GET_POS")
}

// Status is a pure read of the state snapshot.
func (c *Controller) Status() StatusData {
	return c.state.Status()
}
