package allocator

import (
	"fmt"

	gnet "github.com/shirou/gopsutil/v4/net"

	"github.com/ssuji15/kennel/model"
)

// PortAllocator finds free host ports by scanning the live socket table. Like
// the device allocator it holds no state; a found port is only safe once the
// caller binds it, which happens inside the launch lock as part of container
// creation.
type PortAllocator struct {
	boundPorts func() (map[int]bool, error)
}

func NewPortAllocator() *PortAllocator {
	return &PortAllocator{
		boundPorts: scanBoundPorts,
	}
}

// NewPortAllocatorWithScan injects the socket scan, for tests.
func NewPortAllocatorWithScan(scan func() (map[int]bool, error)) *PortAllocator {
	return &PortAllocator{
		boundPorts: scan,
	}
}

// FindOpenPort returns the lowest port in [start, end] with no local socket
// bound to it.
func (a *PortAllocator) FindOpenPort(start, end int) (int, error) {
	return a.FindOpenPortExcluding(start, end, nil)
}

// FindOpenPortExcluding additionally skips ports the caller has already
// claimed within the current launch, since those are not bound yet.
func (a *PortAllocator) FindOpenPortExcluding(start, end int, exclude map[int]bool) (int, error) {
	used, err := a.boundPorts()
	if err != nil {
		return 0, fmt.Errorf("scanning bound ports: %w", err)
	}

	for port := start; port <= end; port++ {
		if !used[port] && !exclude[port] {
			return port, nil
		}
	}
	return 0, &model.NoPortAvailableError{RangeStart: start, RangeEnd: end}
}

func scanBoundPorts() (map[int]bool, error) {
	conns, err := gnet.Connections("inet")
	if err != nil {
		return nil, err
	}

	used := make(map[int]bool, len(conns))
	for _, c := range conns {
		used[int(c.Laddr.Port)] = true
	}
	return used, nil
}
