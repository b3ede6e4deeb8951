package aggregator

import "github.com/dennisdiepolder/monti/rtmetrics/internal/types"

// Summary holds headline counts of one aggregation result
type Summary struct {
	Queues       int
	Agents       int
	OnlineAgents int
	CallsHandled int
}

// Summarize computes headline counts for logging and process metrics
func Summarize(r Result) Summary {
	s := Summary{
		Queues: len(r.Queues),
		Agents: len(r.Agents),
	}
	for _, agent := range r.Agents {
		if agent.Status != types.StatusLoggedOut {
			s.OnlineAgents++
		}
	}
	for _, queue := range r.Queues {
		s.CallsHandled += queue.Handled
	}
	return s
}
