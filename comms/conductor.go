package comms

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/cablebotics/gocablebot/robot"
)

// Conductor turns client commands into controller calls and the follow-up
// pushes the protocol promises. It holds no state of its own; per-connection
// ordering comes from each connection's read loop calling Process
// synchronously.
type Conductor struct {
	Robot *robot.Controller
	Hub   *Hub
}

// Process dispatches one command and returns the correlated response.
// Unknown commands and undecodable payloads reject without side effects.
func (c *Conductor) Process(cmd Cmd) Response {
	resp := Response{ID: cmd.ID}

	switch cmd.Command {
	case "move":
		var move MoveData
		if err := decodeData(cmd.Data, &move); err != nil {
			resp.Error = fmt.Sprintf("invalid move data: %v", err)
			return resp
		}
		if err := c.Robot.MoveTo(move.X, move.Y, move.Z); err != nil {
			resp.Error = err.Error()
			return resp
		}
		resp.Success = true
		resp.Data = map[string]interface{}{"position": c.Robot.Status().Position}
		c.Hub.BroadcastPush(PushPosition, c.Robot.Status().Position)

	case "home":
		if err := c.Robot.Home(); err != nil {
			resp.Error = err.Error()
			return resp
		}
		resp.Success = true
		resp.Data = map[string]interface{}{"position": c.Robot.Status().Position}
		c.Hub.BroadcastPush(PushPosition, c.Robot.Status().Position)

	case "activate":
		if err := c.Robot.Activate(); err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
		}
		c.Hub.BroadcastPush(PushStatus, c.Robot.Status())

	case "deactivate":
		c.Robot.Deactivate()
		resp.Success = true
		c.Hub.BroadcastPush(PushStatus, c.Robot.Status())

	case "emergency_stop":
		c.Robot.EmergencyStop()
		resp.Success = true
		c.Hub.BroadcastPush(PushStatus, c.Robot.Status())

	case "calibrate":
		if err := c.Robot.Calibrate(); err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
		}

	case "get_status":
		resp.Success = true
		resp.Data = c.Robot.Status()

	default:
		log.Printf("rejecting unknown command %q", cmd.Command)
		resp.Error = fmt.Sprintf("unknown command: %s", cmd.Command)
	}

	return resp
}

// decodeData decodes a command payload, treating an absent payload as zero
// values the way the original web clients expect.
func decodeData(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
