package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/abearman/mindful-sub000/broker"
	brokermocks "github.com/abearman/mindful-sub000/broker/mocks"
	"github.com/abearman/mindful-sub000/mq"
	mqmocks "github.com/abearman/mindful-sub000/mq/mocks"
	"github.com/abearman/mindful-sub000/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type mockPurger struct {
	mock.Mock
}

func (m *mockPurger) PurgeUser(ctx context.Context, userId string) error {
	args := m.Called(ctx, userId)
	return args.Error(0)
}

// runOnce feeds msg to a consumer and stops it after the next poll.
func runOnce(t *testing.T, queue *mqmocks.MockMQ, purger *mockPurger, b broker.Broker, msg *mq.Message) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue.On("Receive", mock.Anything, int32(60)).Return(msg, nil).Once()
	queue.On("Receive", mock.Anything, int32(60)).
		Run(func(args mock.Arguments) { cancel() }).
		Return(nil, context.Canceled)

	done := make(chan struct{})
	go func() {
		worker.NewPurgeConsumer(queue, purger, b, zap.NewNop()).Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestPurgeConsumer_Success(t *testing.T) {
	queue := new(mqmocks.MockMQ)
	purger := new(mockPurger)
	b := new(brokermocks.MockBroker)
	msg := &mq.Message{Id: "rh-1", Body: `{"userId":"u1"}`}

	purger.On("PurgeUser", mock.Anything, "u1").Return(nil)
	b.On("Publish", mock.Anything, broker.AccountDeletedChannel, []byte(`{"userId":"u1"}`)).Return(nil)
	queue.On("Delete", mock.Anything, msg).Return(nil)

	runOnce(t, queue, purger, b, msg)

	purger.AssertExpectations(t)
	b.AssertExpectations(t)
	queue.AssertCalled(t, "Delete", mock.Anything, msg)
}

func TestPurgeConsumer_FailureLeavesMessage(t *testing.T) {
	queue := new(mqmocks.MockMQ)
	purger := new(mockPurger)
	msg := &mq.Message{Id: "rh-1", Body: `{"userId":"u1"}`}

	purger.On("PurgeUser", mock.Anything, "u1").Return(errors.New("storage unavailable"))

	runOnce(t, queue, purger, nil, msg)

	queue.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestPurgeConsumer_PoisonMessageDropped(t *testing.T) {
	for _, body := range []string{`not json`, `{}`} {
		queue := new(mqmocks.MockMQ)
		purger := new(mockPurger)
		msg := &mq.Message{Id: "rh-bad", Body: body}

		queue.On("Delete", mock.Anything, msg).Return(nil)

		runOnce(t, queue, purger, nil, msg)

		purger.AssertNotCalled(t, "PurgeUser", mock.Anything, mock.Anything)
		queue.AssertCalled(t, "Delete", mock.Anything, msg)
	}
}

func TestPurgeConsumer_ReceiveErrorsAreRetried(t *testing.T) {
	queue := new(mqmocks.MockMQ)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue.On("Receive", mock.Anything, int32(60)).Return(nil, errors.New("throttled")).Once()
	queue.On("Receive", mock.Anything, int32(60)).Return(nil, nil).Once()
	queue.On("Receive", mock.Anything, int32(60)).
		Run(func(args mock.Arguments) { cancel() }).
		Return(nil, context.Canceled)

	worker.NewPurgeConsumer(queue, new(mockPurger), nil, nil).Run(ctx)

	assert.Len(t, queue.Calls, 3)
}
