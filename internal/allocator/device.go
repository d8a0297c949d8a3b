package allocator

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/ssuji15/kennel/internal/runtime"
	"github.com/ssuji15/kennel/internal/util"
	"github.com/ssuji15/kennel/model"
)

// GPU visibility variable read from and written to every managed container.
const DeviceEnvVar = "NVIDIA_VISIBLE_DEVICES"

// DeviceAllocator tracks which gpu device ids are free. There is no stored
// assignment state: every call recomputes the free set from the runtime's
// live containers, so the pool can never drift from what is actually running.
// Callers that reserve must hold the launch lock through the create call.
type DeviceAllocator struct {
	pool []string
	rt   runtime.Runtime
}

func NewDeviceAllocator(devices []string, rt runtime.Runtime) *DeviceAllocator {
	pool := make([]string, len(devices))
	copy(pool, devices)
	sortDevices(pool)
	return &DeviceAllocator{
		pool: pool,
		rt:   rt,
	}
}

// PoolSize is the total number of devices on the host.
func (a *DeviceAllocator) PoolSize() int {
	return len(a.pool)
}

// Free returns the unassigned device ids, lowest index first.
func (a *DeviceAllocator) Free(ctx context.Context) ([]string, error) {
	containers, err := a.rt.ListContainers(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanning device assignments: %w", err)
	}

	assigned := make(map[string]bool)
	for _, c := range containers {
		for _, d := range util.SplitDevices(c.Env[DeviceEnvVar]) {
			assigned[d] = true
		}
	}

	var free []string
	for _, d := range a.pool {
		if !assigned[d] {
			free = append(free, d)
		}
	}
	return free, nil
}

// AvailableCount reports how many devices are currently unassigned.
func (a *DeviceAllocator) AvailableCount(ctx context.Context) (int, error) {
	free, err := a.Free(ctx)
	if err != nil {
		return 0, err
	}
	return len(free), nil
}

// Reserve picks n device ids from a single free-set snapshot, lowest index
// first. The snapshot and the pick are one call so a capacity check can never
// be satisfied by devices a concurrent reservation already took, provided the
// caller serializes reserve-then-create.
func (a *DeviceAllocator) Reserve(ctx context.Context, n int) ([]string, error) {
	free, err := a.Free(ctx)
	if err != nil {
		return nil, err
	}
	if n > len(free) {
		return nil, &model.InsufficientCapacityError{Requested: n, Available: len(free)}
	}
	return free[:n], nil
}

// sortDevices orders ids numerically where possible so reservation order is
// deterministic.
func sortDevices(devices []string) {
	sort.Slice(devices, func(i, j int) bool {
		a, aerr := strconv.Atoi(devices[i])
		b, berr := strconv.Atoi(devices[j])
		if aerr == nil && berr == nil {
			return a < b
		}
		return devices[i] < devices[j]
	})
}
