package store

import (
	"context"

	"github.com/looplab/fsm"
	log "github.com/sirupsen/logrus"
)

const (
	stateOpen   = "open"
	stateClosed = "closed"

	eventClose = "close"
)

var transitions = fsm.Events{
	{Name: eventClose, Src: []string{stateOpen}, Dst: stateClosed},
}

func newLifecycle(name string) *fsm.FSM {
	return fsm.NewFSM(stateOpen, transitions, fsm.Callbacks{
		"enter_" + stateClosed: func(_ context.Context, e *fsm.Event) {
			log.Debugf("store %s closed", name)
		},
	})
}
