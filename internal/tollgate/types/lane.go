package types

import (
	"fmt"
	"strings"
)

type Lane string

const (
	LaneEntrance Lane = "ENTRANCE"
	LaneExit     Lane = "EXIT"
)

// Lanes lists every physical lane in display order.
var Lanes = []Lane{LaneEntrance, LaneExit}

func ParseLane(s string) (Lane, error) {
	switch Lane(strings.ToUpper(strings.TrimSpace(s))) {
	case LaneEntrance:
		return LaneEntrance, nil
	case LaneExit:
		return LaneExit, nil
	default:
		return "", fmt.Errorf("unknown lane %q", s)
	}
}

type GateAction string

const (
	ActionOpen  GateAction = "OPEN"
	ActionClose GateAction = "CLOSE"
)

type GateCommand struct {
	Lane   Lane
	Action GateAction
}

// Wire returns the newline-terminated token the actuator controller expects.
func (c GateCommand) Wire() []byte {
	return []byte(string(c.Action) + "\n")
}
