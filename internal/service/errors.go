package service

import (
	"errors"

	"fleetwatch/pkg/interfaces"
)

var (
	ErrMissingCredential   = errors.New("api key is required")
	ErrMissingMachineID    = errors.New("machine id is required")
	ErrDeviceNotFound      = errors.New("device not found")
	ErrDeviceDeactivated   = errors.New("device is deactivated")
	ErrDeviceOffline       = errors.New("device is not connected")
	ErrDuplicateMachineID  = errors.New("a device with this machine id already exists")
	ErrAlertNotFound       = errors.New("alert not found")
	ErrInvalidTransition   = errors.New("alert cannot make this transition")
	ErrWorkflowNotFound    = errors.New("workflow not found")
	ErrQuickActionNotFound = errors.New("quick action not found")
	ErrRunNotFound         = errors.New("run not found")
	ErrNoValidTargets      = errors.New("no valid target devices")
	ErrEmptyWorkflow       = errors.New("workflow has no steps")
	ErrInvalidArgument     = errors.New("invalid argument")
)

func isNotFound(err error) bool {
	return errors.Is(err, interfaces.ErrNotFound)
}
