package worker

import "sync"

// OutcomeStatus is the result of processing one due lead.
type OutcomeStatus string

const (
	OutcomeSent      OutcomeStatus = "sent"
	OutcomeCompleted OutcomeStatus = "completed"
	OutcomeError     OutcomeStatus = "error"
	// OutcomeSkipped means another writer touched the lead during the run.
	OutcomeSkipped OutcomeStatus = "skipped"
)

type LeadOutcome struct {
	LeadID uint          `json:"leadId"`
	Status OutcomeStatus `json:"status"`
	Step   int           `json:"step,omitempty"`
	Error  string        `json:"error,omitempty"`
	// WorkspaceID is zero when the lead could not be loaded.
	WorkspaceID uint `json:"-"`
}

// RunSummary is returned by one scheduler run.
type RunSummary struct {
	Processed int           `json:"processed"`
	Results   []LeadOutcome `json:"results"`
}

// OutcomeFeed fans scheduler outcomes out to live subscribers. Slow
// subscribers miss outcomes rather than stall the scheduler.
type OutcomeFeed struct {
	mu          sync.Mutex
	subscribers map[chan LeadOutcome]struct{}
}

func NewOutcomeFeed() *OutcomeFeed {
	return &OutcomeFeed{subscribers: make(map[chan LeadOutcome]struct{})}
}

// Subscribe returns a channel of outcomes and a function that ends the subscription.
func (f *OutcomeFeed) Subscribe(buffer int) (<-chan LeadOutcome, func()) {
	ch := make(chan LeadOutcome, buffer)
	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subscribers, ch)
			f.mu.Unlock()
			close(ch)
		})
	}
}

func (f *OutcomeFeed) Publish(outcome LeadOutcome) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- outcome:
		default:
		}
	}
}
