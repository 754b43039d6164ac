package robot

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	simStep          = 0.05 // meters per report
	simInterval      = time.Second / 10
	simCalibrateTime = 500 * time.Millisecond
)

// SimulatedLink stands in for the serial controller when running without
// hardware. It answers the outbound command vocabulary with the same report
// lines a real controller would emit, routed through the shared report
// parser, so the rest of the gateway cannot tell the difference.
type SimulatedLink struct {
	state *State

	mu     sync.Mutex
	pos    mgl64.Vec3 // the simulated hardware's own idea of its position
	halted bool
	closed chan struct{}
}

func NewSimulatedLink(state *State, home mgl64.Vec3) *SimulatedLink {
	l := &SimulatedLink{
		state:  state,
		pos:    home,
		closed: make(chan struct{}),
	}
	state.SetConnected(true)
	return l
}

func (l *SimulatedLink) Connected() bool { return true }

func (l *SimulatedLink) Close() error {
	close(l.closed)
	l.state.SetConnected(false)
	return nil
}

func (l *SimulatedLink) SendCommand(cmd string) error {
	switch {
	case strings.HasPrefix(cmd, "MOVE:"):
		target, err := parsePosition(strings.TrimPrefix(cmd, "MOVE:"))
		if err != nil {
			return err
		}
		l.mu.Lock()
		l.halted = false
		l.mu.Unlock()
		go l.travel(target)

	case cmd == "ACTIVATE":
		l.mu.Lock()
		l.halted = false
		l.mu.Unlock()
		l.report("STATUS:ACTIVE")

	case cmd == "DEACTIVATE":
		// stop quietly, no status report
		l.mu.Lock()
		l.halted = true
		l.mu.Unlock()

	case cmd == "EMERGENCY_STOP":
		l.mu.Lock()
		l.halted = true
		l.mu.Unlock()
		l.report("STATUS:EMERGENCY")

	case cmd == "CALIBRATE":
		go func() {
			select {
			case <-time.After(simCalibrateTime):
				l.report("CALIBRATED")
			case <-l.closed:
			}
		}()

	case cmd == "GET_POS":
		l.reportPosition()

	default:
		l.report(fmt.Sprintf("ERROR:unknown command %s", cmd))
	}
	return nil
}

// travel steps the simulated position toward target, emitting a POS report
// per step the way stepper firmware streams progress.
func (l *SimulatedLink) travel(target mgl64.Vec3) {
	for {
		select {
		case <-l.closed:
			return
		case <-time.After(simInterval):
		}

		l.mu.Lock()
		if l.halted {
			l.mu.Unlock()
			return
		}

		delta := target.Sub(l.pos)
		if delta.Len() <= simStep {
			l.pos = target
			l.mu.Unlock()
			l.reportPosition()
			return
		}
		l.pos = l.pos.Add(delta.Normalize().Mul(simStep))
		l.mu.Unlock()

		l.reportPosition()
	}
}

func (l *SimulatedLink) reportPosition() {
	l.mu.Lock()
	pos := l.pos
	l.mu.Unlock()
	l.report(fmt.Sprintf("POS:%.3f,%.3f,%.3f", pos.X(), pos.Y(), pos.Z()))
}

func (l *SimulatedLink) report(line string) {
	handleReport(l.state, line)
}
