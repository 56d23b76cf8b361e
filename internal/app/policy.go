package app

import (
	"fmt"

	"github.com/dkeye/lobby/internal/domain"
)

type BackpressureAction int

const (
	DropFrame BackpressureAction = iota
	KickSubscriber
)

func (a BackpressureAction) String() string {
	if a == KickSubscriber {
		return "kick"
	}
	return "drop"
}

func ParseBackpressureAction(s string) (BackpressureAction, error) {
	switch s {
	case "", "drop":
		return DropFrame, nil
	case "kick":
		return KickSubscriber, nil
	}
	return DropFrame, fmt.Errorf("unknown backpressure action %q", s)
}

// Policy decides what to do with a broadcast subscriber whose send buffer is full.
type Policy interface {
	OnBackPressure(topic string, subscriber domain.Identity) BackpressureAction
}

type SimplePolicy struct {
	Action BackpressureAction
}

func (p SimplePolicy) OnBackPressure(topic string, subscriber domain.Identity) BackpressureAction {
	return p.Action
}
