package model

import "fmt"

// SystemStatus is the single process-wide status shown by the panel.
type SystemStatus string

const (
	StatusIdle        SystemStatus = "IDLE"
	StatusDeploying   SystemStatus = "DEPLOYING"
	StatusHealthy     SystemStatus = "HEALTHY"
	StatusUnhealthy   SystemStatus = "UNHEALTHY"
	StatusRollingBack SystemStatus = "ROLLING_BACK"
	StatusMaintenance SystemStatus = "MAINTENANCE"
)

// Statuses lists every SystemStatus in declaration order.
func Statuses() []SystemStatus {
	return []SystemStatus{
		StatusIdle,
		StatusDeploying,
		StatusHealthy,
		StatusUnhealthy,
		StatusRollingBack,
		StatusMaintenance,
	}
}

// ParseSystemStatus converts s into a SystemStatus.
func ParseSystemStatus(s string) (SystemStatus, error) {
	for _, st := range Statuses() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown system status %q", s)
}

// Busy reports whether an action is in flight.
func (s SystemStatus) Busy() bool {
	return s == StatusDeploying
}

func (s SystemStatus) String() string {
	return string(s)
}
