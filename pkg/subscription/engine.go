package subscription

//go:generate mockgen -destination=engine_mock_test.go -package=subscription . Engine
//go:generate mockgen -destination=websocket/engine_mock_test.go -package=websocket . Engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/jensneuse/abstractlogger"

	"github.com/wundergraph/graphql-http-ws-server/pkg/graphql"
)

// Engine defines the function for a subscription engine.
type Engine interface {
	StartOperation(ctx context.Context, id string, payload []byte, eventHandler EventHandler) error
	StopSubscription(id string, eventHandler EventHandler) error
	TerminateAllSubscriptions(eventHandler EventHandler) error
}

// ExecutorEngine is an implementation of Engine and works with a graphql.Executor.
// One ExecutorEngine serves exactly one client connection.
type ExecutorEngine struct {
	logger abstractlogger.Logger
	// subCancellations is map containing the cancellation functions to every active operation.
	subCancellations subscriptionCancellations
	// executor runs the operations.
	executor graphql.Executor
	// operations tracks the goroutines of all running operations.
	operations sync.WaitGroup
}

func NewExecutorEngine(logger abstractlogger.Logger, executor graphql.Executor) *ExecutorEngine {
	if logger == nil {
		logger = abstractlogger.Noop{}
	}

	return &ExecutorEngine{
		logger:   logger,
		executor: executor,
	}
}

// StartOperation will start any operation.
func (e *ExecutorEngine) StartOperation(ctx context.Context, id string, payload []byte, eventHandler EventHandler) error {
	var request graphql.Request
	if err := json.Unmarshal(payload, &request); err != nil {
		eventHandler.Emit(EventTypeOnError, id, nil, graphql.RequestErrorsFromError(err))
		return nil
	}

	operationType, err := request.OperationType()
	if err != nil {
		eventHandler.Emit(EventTypeOnError, id, nil, err)
		return nil
	}

	if ctx, err = e.checkForDuplicateSubscriberID(ctx, id, eventHandler); err != nil {
		return err
	}

	e.operations.Add(1)
	if operationType == graphql.OperationTypeSubscription {
		go e.startSubscription(ctx, id, &request, eventHandler)
		return nil
	}

	go e.handleNonSubscriptionOperation(ctx, id, &request, eventHandler)
	return nil
}

// StopSubscription will stop an active subscription.
func (e *ExecutorEngine) StopSubscription(id string, eventHandler EventHandler) error {
	if e.subCancellations.Cancel(id) {
		eventHandler.Emit(EventTypeOnSubscriptionCompleted, id, nil, nil)
	}
	return nil
}

// TerminateAllSubscriptions will cancel all active subscriptions.
func (e *ExecutorEngine) TerminateAllSubscriptions(eventHandler EventHandler) error {
	if e.subCancellations.CancelAll() == 0 {
		return nil
	}

	eventHandler.Emit(EventTypeOnConnectionTerminatedByServer, "", []byte("connection terminated by server"), nil)
	return nil
}

// Wait blocks until the goroutines of all started operations have returned.
func (e *ExecutorEngine) Wait() {
	e.operations.Wait()
}

// ActiveOperations returns the amount of operations which are currently running.
func (e *ExecutorEngine) ActiveOperations() int {
	return e.subCancellations.Len()
}

func (e *ExecutorEngine) checkForDuplicateSubscriberID(ctx context.Context, id string, eventHandler EventHandler) (context.Context, error) {
	ctx, subsErr := e.subCancellations.AddWithParent(id, ctx)
	if errors.Is(subsErr, ErrSubscriberIDAlreadyExists) {
		eventHandler.Emit(EventTypeOnDuplicatedSubscriberID, id, nil, subsErr)
		return ctx, subsErr
	} else if subsErr != nil {
		eventHandler.Emit(EventTypeOnError, id, nil, subsErr)
		return ctx, subsErr
	}
	return ctx, nil
}

func (e *ExecutorEngine) startSubscription(ctx context.Context, id string, request *graphql.Request, eventHandler EventHandler) {
	defer e.operations.Done()

	results, err := e.executor.Subscribe(ctx, request)
	if err != nil {
		e.logger.Error("subscription.ExecutorEngine.startSubscription: on subscribe",
			abstractlogger.Error(err),
			abstractlogger.String("id", id),
		)

		if e.subCancellations.Cancel(id) {
			eventHandler.Emit(EventTypeOnError, id, nil, err)
		}
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case result, ok := <-results:
			if !ok {
				// the source stream ended without being stopped by the client
				if e.subCancellations.Cancel(id) {
					eventHandler.Emit(EventTypeOnSubscriptionCompleted, id, nil, nil)
				}
				return
			}

			data, err := result.Marshal()
			if err != nil {
				e.logger.Error("subscription.ExecutorEngine.startSubscription: on result marshal",
					abstractlogger.Error(err),
					abstractlogger.String("id", id),
				)
				continue
			}

			e.logger.Debug("subscription.ExecutorEngine.startSubscription: on subscription data",
				abstractlogger.ByteString("execution_result", data),
			)

			if ctx.Err() != nil {
				return
			}
			eventHandler.Emit(EventTypeOnSubscriptionData, id, data, nil)
		}
	}
}

func (e *ExecutorEngine) handleNonSubscriptionOperation(ctx context.Context, id string, request *graphql.Request, eventHandler EventHandler) {
	defer e.operations.Done()

	result, err := e.executor.Execute(ctx, request)
	if err != nil {
		e.logger.Error("subscription.ExecutorEngine.handleNonSubscriptionOperation: on execute",
			abstractlogger.Error(err),
			abstractlogger.String("id", id),
		)

		if e.subCancellations.Cancel(id) {
			eventHandler.Emit(EventTypeOnError, id, nil, err)
		}
		return
	}

	data, err := result.Marshal()
	if err != nil {
		e.logger.Error("subscription.ExecutorEngine.handleNonSubscriptionOperation: on result marshal",
			abstractlogger.Error(err),
		)
	}

	e.logger.Debug("subscription.ExecutorEngine.handleNonSubscriptionOperation: on execution result",
		abstractlogger.ByteString("execution_result", data),
	)

	if !e.subCancellations.Cancel(id) {
		// stopped by the client while executing
		return
	}

	if err != nil {
		eventHandler.Emit(EventTypeOnError, id, nil, err)
		return
	}
	eventHandler.Emit(EventTypeOnNonSubscriptionExecutionResult, id, data, nil)
}

// Interface Guards
var _ Engine = (*ExecutorEngine)(nil)
