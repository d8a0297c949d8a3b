package runtime

import (
	"context"

	"github.com/ssuji15/kennel/model"
)

// Runtime is the container runtime collaborator. The docker package provides
// the real implementation; tests inject fakes.
type Runtime interface {
	ListContainers(ctx context.Context) ([]model.ContainerInfo, error)
	CreateContainer(ctx context.Context, opts model.CreateOptions) (model.ContainerHandle, error)
	KillContainer(ctx context.Context, id string) error
}
