package consumer

import (
	"context"

	"github.com/giobyte8/levelviews/internal/models"
)

type MessageConsumer interface {
	Start(ctx context.Context) error

	Stop()
}

// DirProcessor handles a single directory resize request.
type DirProcessor interface {
	ProcessDir(ctx context.Context, req models.ResizeRequest) error
}
