package director

// EventType classifies orchestrator notifications.
type EventType string

const (
	// EventStateChanged fires after any mutation of the project state or
	// phase.
	EventStateChanged EventType = "state_changed"
	// EventStatus carries a human-readable progress line.
	EventStatus EventType = "status"
	// EventFailed reports a surfaced pipeline error.
	EventFailed EventType = "failed"
	// EventCompleted marks the end of a generate or direct run. Total is
	// the number of candidates or panels produced; Failed counts panels
	// that kept their raw cut.
	EventCompleted EventType = "completed"
)

// Event is delivered to subscribers outside the state lock.
type Event struct {
	Type    EventType `json:"type"`
	Phase   Phase     `json:"phase"`
	Message string    `json:"message,omitempty"`
	Panel   int       `json:"panel,omitempty"`
	Total   int       `json:"total,omitempty"`
	Failed  int       `json:"failed,omitempty"`
}

// Subscribe registers fn for every event and returns a function that
// removes it. fn must not block.
func (o *Orchestrator) Subscribe(fn func(Event)) func() {
	o.mu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = fn
	o.mu.Unlock()
	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

func (o *Orchestrator) subscribersLocked() []func(Event) {
	out := make([]func(Event), 0, len(o.subs))
	for _, fn := range o.subs {
		out = append(out, fn)
	}
	return out
}

func (o *Orchestrator) publish(events ...Event) {
	o.mu.Lock()
	subs := o.subscribersLocked()
	o.mu.Unlock()
	for _, evt := range events {
		for _, fn := range subs {
			fn(evt)
		}
	}
}
