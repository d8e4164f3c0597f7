// environment.go gathers best-effort environment metadata for reports.

package faultline

import (
	"os"
	"runtime"

	"github.com/rs/zerolog"
)

// Environment describes the device and runtime a report came from. All
// fields are best-effort; an entirely empty Environment is valid and is
// substituted whenever the lookup fails.
type Environment struct {
	ProcessorCount int    `json:"processorCount,omitempty"`
	OSVersion      string `json:"osVersion,omitempty"`
	Platform       string `json:"platform,omitempty"`
	Architecture   string `json:"architecture,omitempty"`
	RuntimeVersion string `json:"runtimeVersion,omitempty"`
	HostName       string `json:"hostName,omitempty"`

	// UtcOffset is the local timezone offset in hours, possibly fractional.
	// Stamped by the payload builder.
	UtcOffset float64 `json:"utcOffset"`
}

// environmentSource wraps the platform collaborator. The native layer is
// authoritative when active; otherwise the local Go runtime is described.
// Lookup failure substitutes an empty environment, never an error.
func environmentSource(bridge NativeBridge, logger zerolog.Logger) func() Environment {
	return func() Environment {
		if bridge.HasInitialized() {
			env, err := bridge.EnvironmentInfo()
			if err != nil {
				logger.Warn().Err(err).Msg("environment lookup failed, reporting empty environment")
				return Environment{}
			}
			return env
		}
		return localEnvironment()
	}
}

// localEnvironment describes the Go runtime hosting the pipeline.
func localEnvironment() Environment {
	host, _ := os.Hostname()
	return Environment{
		ProcessorCount: runtime.NumCPU(),
		Platform:       runtime.GOOS,
		Architecture:   runtime.GOARCH,
		RuntimeVersion: runtime.Version(),
		HostName:       host,
	}
}
