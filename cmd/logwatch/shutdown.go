package main

import (
	"errors"

	"logwatch/internal/logging"
)

type shutdownStep struct {
	name string
	stop func() error
}

// shutdownSequence runs its steps once, in order, and keeps going past
// failures.
type shutdownSequence struct {
	logger *logging.Logger
	steps  []shutdownStep
	done   bool
}

func newShutdownSequence(logger *logging.Logger) *shutdownSequence {
	return &shutdownSequence{logger: logger}
}

func (sequence *shutdownSequence) Add(name string, stop func() error) {
	if stop == nil {
		return
	}
	sequence.steps = append(sequence.steps, shutdownStep{name: name, stop: stop})
}

func (sequence *shutdownSequence) Run() error {
	if sequence.done {
		return nil
	}
	sequence.done = true

	var runErr error
	for _, step := range sequence.steps {
		sequence.logger.Debug("shutdown step starting", map[string]string{
			"step": step.name,
		})
		if err := step.stop(); err != nil {
			runErr = errors.Join(runErr, err)
			sequence.logger.Warn("shutdown step failed", map[string]string{
				"step":  step.name,
				"error": err.Error(),
			})
		}
	}
	return runErr
}
