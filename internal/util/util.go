package util

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"
)

// Environment variables set on every launched container and read back by the
// inspector.
const (
	EnvUser     = "USER"
	EnvHome     = "HOME"
	EnvPassword = "PASSWORD"
)

// ParseEnv flattens docker-style "KEY=VALUE" entries into a map. Later
// entries win, matching how the runtime resolves duplicates.
func ParseEnv(entries []string) map[string]string {
	env := make(map[string]string, len(entries))
	for _, entry := range entries {
		i := strings.Index(entry, "=")
		if i < 0 {
			continue
		}
		env[entry[:i]] = entry[i+1:]
	}
	return env
}

// SplitDevices parses a NVIDIA_VISIBLE_DEVICES value into device ids. The
// "none" sentinel and the empty string both mean no devices.
func SplitDevices(v string) []string {
	if v == "" || v == "none" {
		return nil
	}
	var devices []string
	for _, d := range strings.Split(v, ",") {
		d = strings.TrimSpace(d)
		if d != "" {
			devices = append(devices, d)
		}
	}
	return devices
}

// JoinDevices is the inverse of SplitDevices; an empty set yields the "none"
// sentinel so the variable is always present downstream.
func JoinDevices(devices []string) string {
	if len(devices) == 0 {
		return "none"
	}
	return strings.Join(devices, ",")
}

// FormatUptime renders elapsed wall-clock time as "D Days HH:MM:SS".
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d.Seconds())
	days := total / 86400
	rem := total % 86400
	hours := rem / 3600
	rem = rem % 3600
	minutes := rem / 60
	seconds := rem % 60
	return fmt.Sprintf("%d Days %02d:%02d:%02d", days, hours, minutes, seconds)
}

// HashCredential returns the hex digest stored and exposed in place of a raw
// session password.
func HashCredential(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return fmt.Sprintf("%x", sum[:])
}

// VerifyCredential compares a candidate password against a stored digest in
// constant time.
func VerifyCredential(credential, wantHash string) bool {
	got := HashCredential(credential)
	return subtle.ConstantTimeCompare([]byte(got), []byte(wantHash)) == 1
}
