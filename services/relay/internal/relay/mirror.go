package relay

import (
	"context"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/canteen/pkg/event"
)

const (
	defaultMirrorQueue = 512
	mirrorPublishWait  = 5 * time.Second
)

type mirrorItem struct {
	topic string
	frame []byte
}

// Mirror republishes broadcast frames to the event bus. Publishing happens
// on its own worker so a slow bus never stalls the hub; when the queue is
// full the frame is dropped.
type Mirror struct {
	publisher events.Publisher
	logger    apt.Logger

	queue chan mirrorItem
	stop  chan struct{}
	wg    sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

func NewMirror(publisher events.Publisher, size int, logger apt.Logger) *Mirror {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if size <= 0 {
		size = defaultMirrorQueue
	}
	return &Mirror{
		publisher: publisher,
		logger:    logger,
		queue:     make(chan mirrorItem, size),
		stop:      make(chan struct{}),
	}
}

// Publish implements Sink.
func (m *Mirror) Publish(msgType string, frame []byte) {
	topic := event.TopicFor(msgType)
	if topic == "" {
		return
	}

	select {
	case <-m.stop:
		return
	default:
	}

	select {
	case m.queue <- mirrorItem{topic: topic, frame: frame}:
	default:
		m.logger.Info("mirror queue full, dropping frame", "topic", topic)
	}
}

func (m *Mirror) Start(ctx context.Context) error {
	m.startOnce.Do(func() {
		m.wg.Add(1)
		go m.run()
		m.logger.Info("relay mirror started")
	})
	return nil
}

// Stop flushes what is already queued and stops the worker.
func (m *Mirror) Stop(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stop) })

	ctx, cancel := stopContext(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Mirror) run() {
	defer m.wg.Done()

	for {
		select {
		case item := <-m.queue:
			m.publish(item)
		case <-m.stop:
			for {
				select {
				case item := <-m.queue:
					m.publish(item)
				default:
					return
				}
			}
		}
	}
}

func (m *Mirror) publish(item mirrorItem) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorPublishWait)
	defer cancel()

	if err := m.publisher.Publish(ctx, item.topic, item.frame); err != nil {
		m.logger.Error("cannot mirror frame", "topic", item.topic, "error", err)
	}
}
