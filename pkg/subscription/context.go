package subscription

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

var (
	ErrSubscriberIDAlreadyExists = errors.New("subscriber id already exists")
)

// InitialHttpRequestContext carries the upgrade request of a subscription connection.
type InitialHttpRequestContext struct {
	context.Context
	Request *http.Request
}

func NewInitialHttpRequestContext(r *http.Request) *InitialHttpRequestContext {
	return &InitialHttpRequestContext{
		Context: r.Context(),
		Request: r,
	}
}

// InitialHttpRequestFromContext returns the upgrade request if ctx derives from an InitialHttpRequestContext.
func InitialHttpRequestFromContext(ctx context.Context) (*http.Request, bool) {
	initialCtx, ok := ctx.Value(initialHttpRequestContextKey{}).(*InitialHttpRequestContext)
	if !ok {
		return nil, false
	}
	return initialCtx.Request, true
}

type initialHttpRequestContextKey struct{}

// Value exposes the InitialHttpRequestContext itself to derived contexts.
func (i *InitialHttpRequestContext) Value(key interface{}) interface{} {
	if _, ok := key.(initialHttpRequestContextKey); ok {
		return i
	}
	return i.Context.Value(key)
}

type subscriptionCancellations struct {
	mu            sync.RWMutex
	cancellations map[string]context.CancelFunc
}

func (sc *subscriptionCancellations) AddWithParent(id string, parent context.Context) (context.Context, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.cancellations == nil {
		sc.cancellations = make(map[string]context.CancelFunc)
	}
	if _, ok := sc.cancellations[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrSubscriberIDAlreadyExists, id)
	}
	ctx, cancelFunc := context.WithCancel(parent)
	sc.cancellations[id] = cancelFunc
	return ctx, nil
}

func (sc *subscriptionCancellations) Cancel(id string) (ok bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	cancelFunc, ok := sc.cancellations[id]
	if !ok {
		return false
	}

	cancelFunc()
	delete(sc.cancellations, id)
	return true
}

// CancelAll cancels and removes every registered subscription. It returns the amount of cancelled subscriptions.
func (sc *subscriptionCancellations) CancelAll() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	count := len(sc.cancellations)
	for id, cancelFunc := range sc.cancellations {
		cancelFunc()
		delete(sc.cancellations, id)
	}
	return count
}

func (sc *subscriptionCancellations) Len() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return len(sc.cancellations)
}
