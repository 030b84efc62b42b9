package hub

import (
	"sync"

	"github.com/brianly1003/workbench/internal/domain/events"
	"github.com/brianly1003/workbench/internal/domain/ports"
)

// FilteredSubscriber wraps a subscriber and filters events by project ID.
// Events without a project ID (global events) are always forwarded.
// With no projects subscribed, all events are forwarded.
type FilteredSubscriber struct {
	inner    ports.Subscriber
	projects map[int64]bool
	mu       sync.RWMutex
}

// NewFilteredSubscriber creates a new filtered subscriber wrapping the given subscriber.
func NewFilteredSubscriber(inner ports.Subscriber) *FilteredSubscriber {
	return &FilteredSubscriber{
		inner:    inner,
		projects: make(map[int64]bool),
	}
}

// ID returns the subscriber's unique identifier.
func (f *FilteredSubscriber) ID() string {
	return f.inner.ID()
}

// Send forwards the event to the wrapped subscriber if it passes the filter.
func (f *FilteredSubscriber) Send(event events.Event) error {
	if !f.shouldForward(event) {
		return nil
	}
	return f.inner.Send(event)
}

// Close closes the subscriber.
func (f *FilteredSubscriber) Close() error {
	return f.inner.Close()
}

// Done returns a channel that's closed when the subscriber is done.
func (f *FilteredSubscriber) Done() <-chan struct{} {
	return f.inner.Done()
}

// SubscribeProject adds a project to the filter.
func (f *FilteredSubscriber) SubscribeProject(projectID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[projectID] = true
}

// UnsubscribeProject removes a project from the filter.
func (f *FilteredSubscriber) UnsubscribeProject(projectID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.projects, projectID)
}

// SubscribeAll clears the filter, forwarding all events.
func (f *FilteredSubscriber) SubscribeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects = make(map[int64]bool)
}

// IsFiltering returns true if the subscriber is filtering by project.
func (f *FilteredSubscriber) IsFiltering() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.projects) > 0
}

func (f *FilteredSubscriber) shouldForward(event events.Event) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.projects) == 0 {
		return true
	}

	// Global events carry no project ID and always pass.
	projectID := event.GetProjectID()
	if projectID == 0 {
		return true
	}

	return f.projects[projectID]
}
