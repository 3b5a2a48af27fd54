package proof

import (
	"jornada/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

var Module = fx.Module("proof.service",
	fx.Provide(NewService),
)

var Worker = fx.Module("proof.worker",
	fx.Invoke(registerTaskHandlers),
)

func registerTaskHandlers(mux *asynq.ServeMux, s *Service) {
	mux.HandleFunc(taskname.ProofArchive, s.HandleArchiveTask)
}
