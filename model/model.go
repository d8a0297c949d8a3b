package model

import (
	"time"
)

// PortMode says how an image type's container port is published on the host.
type PortMode string

const (
	PortFixed PortMode = "fixed"
	PortAuto  PortMode = "auto"
)

// PortPolicy describes the external binding for one container port. Fixed
// ports publish on Port; auto ports take the lowest free host port in
// [RangeStart, RangeEnd].
type PortPolicy struct {
	Mode       PortMode `yaml:"mode"`
	Port       int      `yaml:"port,omitempty"`
	RangeStart int      `yaml:"rangeStart,omitempty"`
	RangeEnd   int      `yaml:"rangeEnd,omitempty"`
}

// ImageSpec is one entry of the image catalog. Immutable after startup; the
// launcher deep-copies whatever it needs from it.
type ImageSpec struct {
	Key         string             `yaml:"key"`
	Image       string             `yaml:"image"`
	Environment string             `yaml:"environment"` // "dev" or "prod"
	GPUs        int                `yaml:"gpus"`
	Exclusive   bool               `yaml:"exclusive"`
	AutoRemove  bool               `yaml:"autoRemove"`
	Ports       map[int]PortPolicy `yaml:"ports"`
}

// ContainerInfo is the runtime's view of one live container, already flattened
// to what the inspector needs (env as a map, host ports resolved).
type ContainerInfo struct {
	ID        string
	Name      string
	Image     string
	Labels    map[string]string
	Env       map[string]string
	Ports     map[int]int // container port -> host port
	CreatedAt time.Time
}

// MountPoint is one host path bind-mounted into the container.
type MountPoint struct {
	Source   string
	Target   string
	ReadOnly bool
}

// CreateOptions is the launch specification handed to the runtime.
type CreateOptions struct {
	Name         string
	Image        string
	User         string // "uid:gid"
	EnvVars      map[string]string
	Labels       map[string]string
	Mounts       []MountPoint
	Ports        map[int]int // container port -> host port
	Runtime      string
	ShmSizeBytes int64
	AutoRemove   bool
}

// ContainerHandle is what the runtime reports back for a created container.
type ContainerHandle struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Session is a read-only projection of one live container, re-derived from
// the runtime on every inspection call.
type Session struct {
	ID             string      `json:"id"`
	ImageType      string      `json:"imageType,omitempty"` // empty when untracked
	Image          string      `json:"image"`
	Username       string      `json:"username,omitempty"`
	Devices        []string    `json:"devices,omitempty"`
	Ports          map[int]int `json:"ports,omitempty"`
	CredentialHash string      `json:"credentialHash,omitempty"`
	NotebookURL    string      `json:"notebookUrl,omitempty"`
	StudioURL      string      `json:"studioUrl,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	Uptime         string      `json:"uptime"`
}

// GPUCount is the number of devices attached to the session.
func (s *Session) GPUCount() int {
	return len(s.Devices)
}

// LaunchRequest is the incoming API payload for one launch call.
type LaunchRequest struct {
	Username   string `json:"username"`
	ImageType  string `json:"imageType"`
	Credential string `json:"credential,omitempty"`
	GPUCount   int    `json:"gpuCount"`
}

// LaunchResult is returned for every launch call. Admission and allocation
// failures land here with OK=false and a machine-readable kind; they are not
// surfaced as transport errors.
type LaunchResult struct {
	OK      bool             `json:"ok"`
	Message string           `json:"message,omitempty"`
	Kind    ErrorKind        `json:"kind,omitempty"`
	Handle  *ContainerHandle `json:"container,omitempty"`
	Session *Session         `json:"session,omitempty"`
}

// KillRequest carries the credential check for killing a protected session.
type KillRequest struct {
	Credential string `json:"credential,omitempty"`
}

// KillResult mirrors LaunchResult for kill calls.
type KillResult struct {
	OK      bool      `json:"ok"`
	ID      string    `json:"id"`
	Message string    `json:"message,omitempty"`
	Kind    ErrorKind `json:"kind,omitempty"`
}

// ApprovalRecord is one reservation from the calendar collaborator.
type ApprovalRecord struct {
	Username    string `json:"username"`
	Environment string `json:"environment"` // "dev" or "prod"
	Email       string `json:"email,omitempty"`
}

// ReapedSession summarizes one session terminated by the reaper.
type ReapedSession struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	ImageType string `json:"imageType"`
}
