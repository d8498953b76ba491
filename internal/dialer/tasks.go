package dialer

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskCallAnalysis = "calls.analysis"

type CallAnalysisPayload struct {
	CallID string `json:"callId"`
}

func NewCallAnalysisTask(payload CallAnalysisPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCallAnalysis, data), nil
}

func ParseCallAnalysisPayload(task *asynq.Task) (CallAnalysisPayload, error) {
	var payload CallAnalysisPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CallAnalysisPayload{}, err
	}
	return payload, nil
}
