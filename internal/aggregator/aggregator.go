// Package aggregator joins the switch's agent, tier, and queue tables into
// the realtime queue and agent snapshots.
package aggregator

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dennisdiepolder/monti/rtmetrics/internal/tabular"
	"github.com/dennisdiepolder/monti/rtmetrics/internal/types"
)

// Columns read from the switch tables
const (
	FieldName             = "name"
	FieldType             = "type"
	FieldStatus           = "status"
	FieldState            = "state"
	FieldLastBridgeStart  = "last_bridge_start"
	FieldLastBridgeEnd    = "last_bridge_end"
	FieldLastOfferedCall  = "last_offered_call"
	FieldLastStatusChange = "last_status_change"
	FieldNoAnswerCount    = "no_answer_count"
	FieldCallsAnswered    = "calls_answered"
	FieldCallsAbandoned   = "calls_abandoned"
	FieldQueue            = "queue"
	FieldAgent            = "agent"
	FieldLevel            = "level"
	FieldPosition         = "position"
)

// listSeparator joins an agent's queues, levels, and positions
const listSeparator = ", "

// Input holds the three tables of one poll cycle and the capture time used
// for every elapsed-time metric.
type Input struct {
	Agents []tabular.Record
	Tiers  []tabular.Record
	Queues []tabular.Record
	Now    time.Time
}

// Result holds both snapshots, in queue-table and agent-table order.
type Result struct {
	Queues []types.QueueMetrics
	Agents []types.AgentMetrics
}

// Aggregate computes queue and agent metrics. Tiers that reference unknown
// agents are skipped.
func Aggregate(in Input) Result {
	agents := indexAgents(in.Agents)
	tiersByQueue := groupTiers(in.Tiers, FieldQueue)
	tiersByAgent := groupTiers(in.Tiers, FieldAgent)

	return Result{
		Queues: queueMetrics(in.Queues, tiersByQueue, agents),
		Agents: agentMetrics(in.Agents, tiersByAgent, in.Now),
	}
}

// indexAgents maps agent name to its first row.
func indexAgents(agents []tabular.Record) map[string]tabular.Record {
	index := make(map[string]tabular.Record, len(agents))
	for _, agent := range agents {
		name := agent.Get(FieldName)
		if _, exists := index[name]; !exists {
			index[name] = agent
		}
	}
	return index
}

// groupTiers groups tier rows by the given column, keeping tier-table order.
func groupTiers(tiers []tabular.Record, field string) map[string][]tabular.Record {
	groups := make(map[string][]tabular.Record)
	for _, tier := range tiers {
		key := tier.Get(field)
		groups[key] = append(groups[key], tier)
	}
	return groups
}

func queueMetrics(queues []tabular.Record, tiersByQueue map[string][]tabular.Record, agents map[string]tabular.Record) []types.QueueMetrics {
	byName := make(map[string]*types.QueueMetrics)
	order := make([]string, 0, len(queues))

	for _, queue := range queues {
		name := queue.Get(FieldName)
		tiers := tiersByQueue[name]
		if len(tiers) == 0 {
			continue
		}

		m, created := getOrCreateQueue(byName, name)
		if !created {
			// duplicate queue row; the first one wins
			continue
		}
		order = append(order, name)

		m.Handled = counter(queue, FieldCallsAnswered)
		m.Abandoned = counter(queue, FieldCallsAbandoned)
		m.SL60 = ServiceLevel(m.Handled, m.Abandoned)

		var aht handleTime
		for _, tier := range tiers {
			agent, ok := agents[tier.Get(FieldAgent)]
			if !ok {
				continue
			}
			classify(m, agent.Get(FieldStatus), agent.Get(FieldState))
			aht.add(agent)
		}
		m.AHT = aht.average()
	}

	result := make([]types.QueueMetrics, 0, len(order))
	for _, name := range order {
		result = append(result, *byName[name])
	}
	return result
}

func getOrCreateQueue(byName map[string]*types.QueueMetrics, name string) (*types.QueueMetrics, bool) {
	if m, ok := byName[name]; ok {
		return m, false
	}
	m := &types.QueueMetrics{
		Name: name,
		AHT:  types.FormatHHMMSS(0),
	}
	byName[name] = m
	return m, true
}

// classify increments every counter whose predicate holds. Status and state
// are independent, so one agent can land in several counters.
func classify(m *types.QueueMetrics, status, state string) {
	if status != types.StatusLoggedOut {
		m.Online++
	}
	if state == types.StateInAQueueCall {
		m.InaQueueCall++
	}
	if status == types.StatusOnBreak {
		m.OnBreak++
	}
	if status == types.StatusAvailableOnDemand {
		m.ACW++
	}
	if status == types.StatusLoggedOut {
		m.LoggedOut++
	}
	if status == types.StatusAvailable && state != types.StateInAQueueCall && state != types.StateReceiving {
		m.Available++
	}
	if state == types.StateIdle {
		m.Idle++
	}
	if state == types.StateWaiting && status == types.StatusAvailable {
		m.Waiting++
	}
	if state == types.StateReceiving {
		m.Receiving++
	}
}

// handleTime accumulates the last bridge window of each agent in one queue.
type handleTime struct {
	total int64 // seconds
	count int
}

// add counts the agent only when both bridge timestamps are numeric.
func (h *handleTime) add(agent tabular.Record) {
	start, ok := agent.Int(FieldLastBridgeStart)
	if !ok {
		return
	}
	end, ok := agent.Int(FieldLastBridgeEnd)
	if !ok {
		return
	}
	h.total = saturatingAdd(h.total, types.Elapsed(start, end))
	h.count++
}

func (h *handleTime) average() string {
	if h.count == 0 {
		return types.FormatHHMMSS(0)
	}
	return types.FormatHHMMSS(types.Seconds(h.total / int64(h.count)))
}

func saturatingAdd(a, b int64) int64 {
	sum := a + b
	switch {
	case a > 0 && b > 0 && sum < 0:
		return math.MaxInt64
	case a < 0 && b < 0 && sum >= 0:
		return math.MinInt64
	}
	return sum
}

// ServiceLevel returns handled calls as a percentage of handled plus
// abandoned, rounded to two decimals; 0 when no calls were offered.
// Rounding works on the exact value with ties to even, so 0.125 becomes 0.12.
func ServiceLevel(handled, abandoned int) float64 {
	total := handled + abandoned
	if total <= 0 {
		return 0
	}
	pct := float64(handled) * 100 / float64(total)
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(pct, 'f', 2, 64), 64)
	return rounded
}

// counter reads a non-negative counter; anything else counts as 0.
func counter(r tabular.Record, field string) int {
	n, ok := r.Int(field)
	if !ok || n < 0 {
		return 0
	}
	return int(n)
}

func agentMetrics(agents []tabular.Record, tiersByAgent map[string][]tabular.Record, now time.Time) []types.AgentMetrics {
	result := make([]types.AgentMetrics, 0, len(agents))
	for _, agent := range agents {
		tiers := tiersByAgent[agent.Get(FieldName)]
		if len(tiers) == 0 {
			continue
		}
		result = append(result, newAgentMetrics(agent, tiers, now))
	}
	return result
}

func newAgentMetrics(agent tabular.Record, tiers []tabular.Record, now time.Time) types.AgentMetrics {
	status := agent.Get(FieldStatus)
	state := agent.Get(FieldState)

	queues := make([]string, 0, len(tiers))
	levels := make([]string, 0, len(tiers))
	positions := make([]string, 0, len(tiers))
	for _, tier := range tiers {
		queues = append(queues, tier.Get(FieldQueue))
		levels = append(levels, tier.Get(FieldLevel))
		positions = append(positions, tier.Get(FieldPosition))
	}

	availability := 0
	if status == types.StatusAvailable {
		availability = 1
	}

	return types.AgentMetrics{
		Name:                 agent.Get(FieldName),
		Type:                 agent.Get(FieldType),
		Status:               status,
		StatusDuration:       statusDuration(agent, now),
		Capacity:             1,
		Availability:         availability,
		ContactState:         contactState(status, state),
		ContactStateDuration: contactStateDuration(agent, status, state, now),
		Queue:                strings.Join(queues, listSeparator),
		ACW:                  afterCallWork(agent, status, now),
		AgentNonResponse:     agent.Get(FieldNoAnswerCount),
		CallsHandled:         agent.Get(FieldCallsAnswered),
		LCHT:                 lastCompletedHandleTime(agent, state),
		Level:                strings.Join(levels, listSeparator),
		Position:             strings.Join(positions, listSeparator),
	}
}

// statusDuration is unset when the switch reports no status change.
func statusDuration(agent tabular.Record, now time.Time) types.StatusDuration {
	changed, ok := agent.Int(FieldLastStatusChange)
	if !ok || changed == 0 {
		return types.StatusDurationUnset
	}
	return types.StatusDuration(since(now, changed))
}

func contactState(status, state string) string {
	switch {
	case state == types.StateInAQueueCall:
		return types.StateInAQueueCall
	case state == types.StateReceiving:
		return types.StateReceiving
	case status == types.StatusAvailableOnDemand:
		return types.StatusAvailableOnDemand
	default:
		return types.NotApplicable
	}
}

// contactStateDuration measures from the event that started the contact
// state: the offer while ringing, the bridge while talking, the status
// change while in after-call work.
func contactStateDuration(agent tabular.Record, status, state string, now time.Time) string {
	switch {
	case state == types.StateReceiving:
		return since(now, epoch(agent, FieldLastOfferedCall))
	case state == types.StateInAQueueCall:
		return since(now, epoch(agent, FieldLastBridgeStart))
	case status == types.StatusAvailableOnDemand:
		return since(now, epoch(agent, FieldLastStatusChange))
	default:
		return types.NotApplicable
	}
}

func afterCallWork(agent tabular.Record, status string, now time.Time) string {
	if status != types.StatusAvailableOnDemand {
		return types.NotApplicable
	}
	return since(now, epoch(agent, FieldLastStatusChange))
}

// lastCompletedHandleTime is "-" while the bridge is still open.
func lastCompletedHandleTime(agent tabular.Record, state string) string {
	if state == types.StateInAQueueCall {
		return types.NotApplicable
	}
	start := epoch(agent, FieldLastBridgeStart)
	end := epoch(agent, FieldLastBridgeEnd)
	return types.FormatHHMMSS(types.Seconds(types.Elapsed(start, end)))
}

// epoch reads a timestamp in epoch seconds; missing or non-numeric is 0.
func epoch(r tabular.Record, field string) int64 {
	n, _ := r.Int(field)
	return n
}

func since(now time.Time, epochSeconds int64) string {
	return types.FormatHHMMSS(now.Sub(time.Unix(epochSeconds, 0)))
}
