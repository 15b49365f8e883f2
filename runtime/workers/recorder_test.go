package workers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"support-relay/domain"
	"support-relay/mocks"
	"support-relay/observability"
)

func TestRecorderWorker_Drains_Queue_Into_Store(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	queue := NewRecorderQueue(8, observability.NewMonitor(logger))
	stored := make(chan domain.Message, 8)

	storeMock := mocks.NewMockTranscriptStore(ctrl)
	storeMock.EXPECT().
		StoreMessage(gomock.Any()).
		DoAndReturn(func(msg domain.Message) error {
			stored <- msg
			return nil
		}).
		Times(2)

	worker := NewRecorderWorker(queue, storeMock, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	queue.Record(domain.Message{SeekerID: "S1", Text: "first"})
	queue.Record(domain.Message{SeekerID: "S1", Text: "second"})

	req.Equal("first", receiveMessage(t, stored).Text)
	req.Equal("second", receiveMessage(t, stored).Text)
}

func TestRecorderQueue_Record_Never_Blocks_When_Full(t *testing.T) {
	req := require.New(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	queue := NewRecorderQueue(1, observability.NewMonitor(logger))

	// With no worker draining, only the first message fits
	done := make(chan struct{})
	go func() {
		queue.Record(domain.Message{Text: "kept"})
		queue.Record(domain.Message{Text: "dropped"})
		queue.Record(domain.Message{Text: "dropped too"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("Record must not block on a saturated queue")
	}
	req.Len(queue.messages, 1)
}

func TestRecorderWorker_Survives_Store_Failures(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	queue := NewRecorderQueue(8, observability.NewMonitor(logger))
	stored := make(chan domain.Message, 8)

	storeMock := mocks.NewMockTranscriptStore(ctrl)
	gomock.InOrder(
		storeMock.EXPECT().
			StoreMessage(gomock.Any()).
			Return(fmt.Errorf("disk full")).
			Times(1),
		storeMock.EXPECT().
			StoreMessage(gomock.Any()).
			DoAndReturn(func(msg domain.Message) error {
				stored <- msg
				return nil
			}).
			Times(1),
	)

	worker := NewRecorderWorker(queue, storeMock, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	// A failing store call must not stop the drain loop
	queue.Record(domain.Message{Text: "fails"})
	queue.Record(domain.Message{Text: "lands"})

	req.Equal("lands", receiveMessage(t, stored).Text)
}

func receiveMessage(t *testing.T, ch <-chan domain.Message) domain.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a message")
		return domain.Message{}
	}
}
