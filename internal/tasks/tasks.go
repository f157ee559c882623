package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeOrphanSweep = "storage:orphan:sweep"
)

type OrphanSweepPayload struct{}

func NewOrphanSweepTask(opts ...asynq.Option) (*asynq.Task, error) {
	payload := OrphanSweepPayload{}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	uniqueOpt := asynq.Unique(1 * time.Hour)
	allOpts := append(opts, uniqueOpt)

	return asynq.NewTask(TypeOrphanSweep, payloadBytes, allOpts...), nil
}
