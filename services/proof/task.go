package proof

import (
	"encoding/json"

	"jornada/pkg/taskname"

	"github.com/hibiken/asynq"
)

type ArchivePayload struct {
	ActionLogID string `json:"action_log_id"`
	PhotoURL    string `json:"photo_url"`
}

func NewArchiveTask(actionLogID, photoURL string) (*asynq.Task, error) {
	payload, err := json.Marshal(ArchivePayload{ActionLogID: actionLogID, PhotoURL: photoURL})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.ProofArchive, payload), nil
}
