package entities

// PoolState is the lifecycle state of a session's prefetch buffer.
type PoolState string

const (
	PoolEmpty      PoolState = "empty"
	PoolLoading    PoolState = "loading"    // initial blocking fill
	PoolReady      PoolState = "ready"      // buffer filled, nothing served yet
	PoolServing    PoolState = "serving"    // handing out buffered items
	PoolRefilling  PoolState = "refilling"  // serving while a background refill is in flight
	PoolExhausting PoolState = "exhausting" // buffer drained, blocking refill widening scope
	PoolClosed     PoolState = "closed"
)

// PoolEvent is an input to the pool state machine.
type PoolEvent string

const (
	EventStart      PoolEvent = "start"
	EventLoaded     PoolEvent = "loaded"
	EventNoContent  PoolEvent = "no_content"
	EventTake       PoolEvent = "take"
	EventRefillDue  PoolEvent = "refill_due"
	EventRefillDone PoolEvent = "refill_done"
	EventDrained    PoolEvent = "drained"
	EventClose      PoolEvent = "close"
)

// PoolEffect is an action the session must perform after a transition.
type PoolEffect string

const (
	EffectFetch           PoolEffect = "fetch"            // blocking planner call
	EffectBackgroundFetch PoolEffect = "background_fetch" // non-blocking planner call
	EffectServe           PoolEffect = "serve"            // pop the buffer head
	EffectServeFallback   PoolEffect = "serve_fallback"   // hand out the static item
	EffectDiscard         PoolEffect = "discard"          // cancel in-flight fetches
)

type poolTransition struct {
	next    PoolState
	effects []PoolEffect
}

var poolTable = map[PoolState]map[PoolEvent]poolTransition{
	PoolEmpty: {
		EventStart: {PoolLoading, []PoolEffect{EffectFetch}},
	},
	PoolLoading: {
		EventStart:     {PoolLoading, []PoolEffect{EffectFetch}}, // retry after a failed fill
		EventLoaded:    {PoolReady, nil},
		EventNoContent: {PoolServing, []PoolEffect{EffectServeFallback}},
	},
	PoolReady: {
		EventTake:       {PoolServing, []PoolEffect{EffectServe}},
		EventDrained:    {PoolExhausting, []PoolEffect{EffectFetch}},
		EventRefillDone: {PoolReady, nil},
	},
	PoolServing: {
		EventTake:       {PoolServing, []PoolEffect{EffectServe}},
		EventRefillDue:  {PoolRefilling, []PoolEffect{EffectBackgroundFetch}},
		EventRefillDone: {PoolServing, nil},
		EventDrained:    {PoolExhausting, []PoolEffect{EffectFetch}},
	},
	PoolRefilling: {
		EventTake:       {PoolRefilling, []PoolEffect{EffectServe}},
		EventRefillDue:  {PoolRefilling, nil},
		EventRefillDone: {PoolServing, nil},
		EventDrained:    {PoolExhausting, []PoolEffect{EffectFetch}},
	},
	PoolExhausting: {
		EventLoaded:     {PoolServing, []PoolEffect{EffectServe}},
		EventNoContent:  {PoolServing, []PoolEffect{EffectServeFallback}},
		EventDrained:    {PoolExhausting, []PoolEffect{EffectFetch}}, // retry after a failed fill
		EventRefillDone: {PoolExhausting, nil},
	},
}

// NextPoolState is the pool state machine. It returns the next state and the
// effects to run. ok is false when the event is not valid in state; the
// state is then returned unchanged.
func NextPoolState(state PoolState, event PoolEvent) (next PoolState, effects []PoolEffect, ok bool) {
	if event == EventClose {
		if state == PoolClosed {
			return PoolClosed, nil, true
		}
		return PoolClosed, []PoolEffect{EffectDiscard}, true
	}

	t, ok := poolTable[state][event]
	if !ok {
		return state, nil, false
	}
	return t.next, t.effects, true
}
