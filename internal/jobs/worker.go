package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Worker runs the background task loop for sweeps and notifications.
type Worker interface {
	RegisterHandler(taskType string, handler asynq.Handler)
	Run() error
	Shutdown()
}

type asynqWorker struct {
	srv *asynq.Server
	mux *asynq.ServeMux
	log *slog.Logger
}

var _ Worker = (*asynqWorker)(nil)

// NewWorker builds a Worker over asynq. Queue weights decide how sweep
// tasks compete with one-off assessments under load.
func NewWorker(redisOpt asynq.RedisConnOpt, queues map[string]int, log *slog.Logger) Worker {
	return &asynqWorker{
		srv: asynq.NewServer(redisOpt, asynq.Config{
			Queues:         queues,
			Concurrency:    10,
			RetryDelayFunc: asynq.DefaultRetryDelayFunc,
		}),
		mux: asynq.NewServeMux(),
		log: log,
	}
}

func (w *asynqWorker) RegisterHandler(taskType string, handler asynq.Handler) {
	w.mux.Handle(taskType, handler)
}

// Run blocks processing tasks until Shutdown is called.
func (w *asynqWorker) Run() error {
	if w.log != nil {
		w.log.InfoContext(context.Background(), "jobs: worker started")
	}

	return w.srv.Run(w.mux)
}

func (w *asynqWorker) Shutdown() {
	if w.log != nil {
		w.log.InfoContext(context.Background(), "jobs: worker stopping")
	}

	w.srv.Shutdown()
}
