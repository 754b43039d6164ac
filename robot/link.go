package robot

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver"
	"github.com/go-gl/mathgl/mgl64"
	"go.bug.st/serial"
)

const (
	readBackoff = 100 * time.Millisecond

	// maxReadFailures bounds consecutive read errors before the link is
	// declared lost. Transient glitches recover well inside this budget; a
	// controller that errors this many times in a row is gone.
	maxReadFailures = 5
)

// Link is the exclusive connection to the physical controller. Sends are
// fire-and-forget: a nil return means the write landed on the transport, not
// that the hardware executed anything.
type Link interface {
	SendCommand(cmd string) error
	Connected() bool
	Close() error
}

// SerialLink drives a line-oriented serial controller. A reader goroutine
// ingests asynchronous reports for the lifetime of the connection and applies
// them to the shared state.
type SerialLink struct {
	state         *State
	firmware      *semver.Constraints
	firmwareRange string

	mu     sync.Mutex // guards port writes
	port   serial.Port
	closed chan struct{}
}

// NewSerialLink opens the configured port and starts the reader loop. An open
// failure is not fatal: the gateway stays up in a degraded mode where every
// send reports ErrLinkUnavailable.
func NewSerialLink(config Config, state *State) *SerialLink {
	l := &SerialLink{
		state:  state,
		closed: make(chan struct{}),
	}

	if config.Firmware != "" {
		constraint, err := semver.NewConstraint(config.Firmware)
		if err != nil {
			log.Printf("invalid firmware constraint %q: %v", config.Firmware, err)
		} else {
			l.firmware = constraint
			l.firmwareRange = config.Firmware
		}
	}

	mode := &serial.Mode{BaudRate: config.Serial.Baud}
	port, err := serial.Open(config.Serial.Port, mode)
	if err != nil {
		log.Printf("failed to connect to hardware on %s: %v", config.Serial.Port, err)
		state.SetConnected(false)
		return l
	}

	l.port = port
	state.SetConnected(true)
	log.Printf("connected to hardware on %s", config.Serial.Port)

	go l.readLoop(port)
	return l
}

// SendCommand writes one newline-terminated command. No acknowledgment wait,
// no retry.
func (l *SerialLink) SendCommand(cmd string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.port == nil {
		return ErrLinkUnavailable
	}

	if _, err := fmt.Fprintf(l.port, "%s\n", cmd); err != nil {
		return fmt.Errorf("error sending command: %w", err)
	}
	log.Printf("sent to hardware: %s", cmd)
	return nil
}

func (l *SerialLink) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port != nil
}

// Close stops the reader loop and closes the port.
func (l *SerialLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.port == nil {
		return nil
	}

	close(l.closed)
	err := l.port.Close()
	l.port = nil
	l.state.SetConnected(false)
	return err
}

func (l *SerialLink) readLoop(port io.Reader) {
	reader := bufio.NewReader(port)
	failures := 0
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			select {
			case <-l.closed:
				return
			default:
			}

			// Reads can fail transiently; keep the loop alive. EOF, a
			// vanished port or an exhausted failure budget ends it without
			// touching the safety flags.
			failures++
			if err == io.EOF || failures >= maxReadFailures || !l.Connected() {
				log.Printf("hardware connection lost: %v", err)
				l.state.SetConnected(false)
				return
			}
			log.Printf("error reading hardware: %v", err)
			time.Sleep(readBackoff)
			continue
		}

		failures = 0
		l.handleLine(strings.TrimSpace(line))
	}
}

func (l *SerialLink) handleLine(line string) {
	if version, ok := strings.CutPrefix(line, "VERSION:"); ok {
		l.checkFirmware(version)
		return
	}
	handleReport(l.state, line)
}

// checkFirmware gates the reported controller firmware against the configured
// range. Warn-only: an unexpected version never takes the link down.
func (l *SerialLink) checkFirmware(version string) {
	if version == "DEV" || l.firmware == nil {
		return
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		log.Printf("controller reported unparseable firmware version %q", version)
		return
	}
	if !l.firmware.Check(v) {
		log.Printf("controller firmware %s outside supported range %s", version, l.firmwareRange)
	}
}

// handleReport applies one hardware report line to the state. Unrecognized
// lines are ignored; malformed ones are dropped with a log entry.
func handleReport(state *State, line string) {
	switch {
	case strings.HasPrefix(line, "POS:"):
		pos, err := parsePosition(line[4:])
		if err != nil {
			log.Printf("dropping malformed position report %q: %v", line, err)
			return
		}
		state.SetPosition(pos)

	case line == "STATUS:ACTIVE":
		state.ClearEmergency()

	case line == "STATUS:EMERGENCY":
		state.LatchEmergency()

	case strings.HasPrefix(line, "CALIBRATED"):
		state.SetCalibrated(true)

	case strings.HasPrefix(line, "ERROR:"):
		log.Printf("hardware error: %s", strings.TrimPrefix(line, "ERROR:"))
	}
}

// parsePosition parses the "x,y,z" payload of POS: and MOVE: lines.
func parsePosition(payload string) (pos mgl64.Vec3, err error) {
	coords := strings.Split(payload, ",")
	if len(coords) != 3 {
		return pos, fmt.Errorf("expected 3 coordinates, got %d", len(coords))
	}

	for i, coord := range coords {
		pos[i], err = strconv.ParseFloat(strings.TrimSpace(coord), 64)
		if err != nil {
			return pos, err
		}
	}
	return pos, nil
}
