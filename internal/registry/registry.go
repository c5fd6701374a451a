// Package registry implements the subscription control plane: a
// reference-counted, bidirectional index from bus subject to the set of
// WebSocket clients interested in it.
package registry

import (
	"sync"

	"github.com/alanyoungcy/natsgw/internal/domain"
)

// Registry is the bidirectional subject<->client index. All operations are
// atomic with respect to each other under a single mutex; readers that only
// need a snapshot acquire it briefly to copy and release, never holding it
// across a suspension point.
type Registry struct {
	mu        sync.Mutex
	bySubject map[string]map[*domain.Client]struct{}
	byClient  map[*domain.Client]map[string]struct{}
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		bySubject: make(map[string]map[*domain.Client]struct{}),
		byClient:  make(map[*domain.Client]map[string]struct{}),
	}
}

// RegisterClient ensures c has an entry (possibly empty) in the registry.
// Idempotent.
func (r *Registry) RegisterClient(c *domain.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byClient[c]; !ok {
		r.byClient[c] = make(map[string]struct{})
	}
}

// AddSubscription inserts c into subject's subscriber set. added is false if
// c was already present.
func (r *Registry) AddSubscription(subject string, c *domain.Client) (added bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.bySubject[subject]
	if !ok {
		subs = make(map[*domain.Client]struct{})
		r.bySubject[subject] = subs
	}
	if _, already := subs[c]; already {
		return false
	}
	subs[c] = struct{}{}

	subjects, ok := r.byClient[c]
	if !ok {
		subjects = make(map[string]struct{})
		r.byClient[c] = subjects
	}
	subjects[subject] = struct{}{}

	return true
}

// RemoveSubscription removes c from subject's subscriber set. removed
// reports whether c was present; emptied reports whether the set transitioned
// to empty (and was deleted).
func (r *Registry) RemoveSubscription(subject string, c *domain.Client) (removed, emptied bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeSubscriptionLocked(subject, c)
}

func (r *Registry) removeSubscriptionLocked(subject string, c *domain.Client) (removed, emptied bool) {
	subs, ok := r.bySubject[subject]
	if !ok {
		return false, false
	}
	if _, present := subs[c]; !present {
		return false, false
	}
	delete(subs, c)

	if subjects, ok := r.byClient[c]; ok {
		delete(subjects, subject)
	}

	if len(subs) == 0 {
		delete(r.bySubject, subject)
		return true, true
	}
	return true, false
}

// RemoveClient drops c from every subject it was subscribed to. It returns
// the full set of subjects c was removed from and the subset that emptied.
func (r *Registry) RemoveClient(c *domain.Client) (removedSubjects, emptiedSubjects []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subjects, ok := r.byClient[c]
	if !ok {
		return nil, nil
	}

	removedSubjects = make([]string, 0, len(subjects))
	for subject := range subjects {
		removedSubjects = append(removedSubjects, subject)
	}
	delete(r.byClient, c)

	for _, subject := range removedSubjects {
		subs, ok := r.bySubject[subject]
		if !ok {
			continue
		}
		delete(subs, c)
		if len(subs) == 0 {
			delete(r.bySubject, subject)
			emptiedSubjects = append(emptiedSubjects, subject)
		}
	}

	return removedSubjects, emptiedSubjects
}

// SubjectsForClient returns a copy of the set of subjects c currently
// subscribes to, used to reconcile a bulk subscribe_many request against
// what the client is already subscribed to.
func (r *Registry) SubjectsForClient(c *domain.Client) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	subjects, ok := r.byClient[c]
	if !ok || len(subjects) == 0 {
		return nil
	}
	out := make([]string, 0, len(subjects))
	for subject := range subjects {
		out = append(out, subject)
	}
	return out
}

// SnapshotSubscribers returns a copy of subject's current subscriber set so
// the caller can fan out without holding the registry mutex.
func (r *Registry) SnapshotSubscribers(subject string) []*domain.Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.bySubject[subject]
	if len(subs) == 0 {
		return nil
	}
	out := make([]*domain.Client, 0, len(subs))
	for c := range subs {
		out = append(out, c)
	}
	return out
}

// SubjectCount returns the number of subjects with at least one subscriber.
func (r *Registry) SubjectCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bySubject)
}

// ClientCount returns the number of registered clients.
func (r *Registry) ClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byClient)
}

// RefCount returns the number of clients currently subscribed to subject,
// which equals the upstream manager's refcount for that subject.
func (r *Registry) RefCount(subject string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bySubject[subject])
}
