package contracts

import (
	"context"

	"github.com/julienschmidt/httprouter"
)

type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// Handlers registers each of its members on the same router.
type Handlers []Handler

func (hs Handlers) RegisterRoutes(router *httprouter.Router) {
	for _, h := range hs {
		h.RegisterRoutes(router)
	}
}

// Worker is a background loop that runs until ctx is cancelled.
type Worker interface {
	Run(ctx context.Context) error
}

type WorkerFunc func(ctx context.Context) error

func (f WorkerFunc) Run(ctx context.Context) error {
	return f(ctx)
}
