package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Envelope контейнер события сессии воспроизведения.
type Envelope struct {
	ID            string            `json:"id"`             // UUID события.
	Timestamp     time.Time         `json:"ts"`             // Время создания (UTC).
	Source        string            `json:"source"`         // Компонент-источник.
	EventType     string            `json:"type"`           // Тип события (FileLoaded, FramesAppended…).
	Version       int               `json:"version"`        // Схема полезной нагрузки.
	CorrelationID string            `json:"correlation_id"` // ID сессии воспроизведения.
	Priority      int               `json:"priority"`       // 0=Low … 9=Critical (для backpressure).
	Payload       []byte            `json:"payload"`        // JSON полезной нагрузки.
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewEnvelope упаковывает payload в JSON и заполняет служебные поля.
func NewEnvelope(eventType, source, correlationID string, priority int, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return &Envelope{
		ID:            uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		Source:        source,
		EventType:     eventType,
		Version:       1,
		CorrelationID: correlationID,
		Priority:      priority,
		Payload:       data,
	}, nil
}

// Decode распаковывает полезную нагрузку в v.
func (e *Envelope) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Filter позволяет подписаться только на нужные события.
type Filter struct {
	Types   []string // Пусто: все типы.
	Sources []string // Пусто: все источники.
}

// Subscription возвращается при подписке; позволяет отписаться.
type Subscription interface {
	Unsubscribe()
}

// Handler потребляет события.
type Handler func(ctx context.Context, ev *Envelope)

// Stats агрегированные метрики шины.
type Stats struct {
	Published uint64 `json:"published"`
	Consumed  uint64 `json:"consumed"`
	Dropped   uint64 `json:"dropped"`
	InFlight  int    `json:"in_flight"`
}

// EventBus абстракция шины уведомлений: in-memory или JetStream.
type EventBus interface {
	Publish(ctx context.Context, ev *Envelope) error
	Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error)
	Metrics() Stats
	Close() error
}

//================ In-Memory implementation =================//

type memoryBus struct {
	mu          sync.RWMutex
	subscribers map[int]subscriber
	nextID      int
	stats       Stats
	buffer      chan *Envelope
	closeOnce   sync.Once
	done        chan struct{}
	stopped     chan struct{}
}

type subscriber struct {
	filter  Filter
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewMemoryBus создаёт in-memory шину с буфером capacity.
func NewMemoryBus(capacity int) EventBus {
	if capacity <= 0 {
		capacity = 1
	}
	mb := &memoryBus{
		subscribers: make(map[int]subscriber),
		buffer:      make(chan *Envelope, capacity),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	go mb.dispatchLoop()
	return mb
}

func (mb *memoryBus) Publish(ctx context.Context, ev *Envelope) error {
	select {
	case <-mb.done:
		return ErrClosed
	default:
	}

	select {
	case mb.buffer <- ev:
		mb.count(&mb.stats.Published)
		return nil
	default:
		// Буфер заполнен: низкий приоритет (<5) отбрасывается
		if ev.Priority < 5 {
			mb.count(&mb.stats.Dropped)
			return nil
		}
		select {
		case mb.buffer <- ev:
			mb.count(&mb.stats.Published)
			return nil
		case <-ctx.Done():
			mb.count(&mb.stats.Dropped)
			return ctx.Err()
		case <-mb.done:
			return ErrClosed
		}
	}
}

func (mb *memoryBus) count(c *uint64) {
	mb.mu.Lock()
	*c++
	mb.mu.Unlock()
}

func (mb *memoryBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	mb.mu.Lock()
	id := mb.nextID
	mb.nextID++
	cctx, cancel := context.WithCancel(ctx)
	mb.subscribers[id] = subscriber{filter: f, handler: h, ctx: cctx, cancel: cancel}
	mb.mu.Unlock()

	return &memSub{bus: mb, id: id}, nil
}

func (mb *memoryBus) Metrics() Stats {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	s := mb.stats
	s.InFlight = len(mb.buffer)
	return s
}

// Close останавливает рассылку и дожидается текущего обработчика.
func (mb *memoryBus) Close() error {
	mb.closeOnce.Do(func() {
		close(mb.done)
		mb.mu.Lock()
		for id, sub := range mb.subscribers {
			sub.cancel()
			delete(mb.subscribers, id)
		}
		mb.mu.Unlock()
	})
	<-mb.stopped
	return nil
}

// dispatchLoop рассылает события подписчикам в порядке публикации.
func (mb *memoryBus) dispatchLoop() {
	defer close(mb.stopped)
	for {
		select {
		case <-mb.done:
			return
		case ev := <-mb.buffer:
			mb.deliver(ev)
		}
	}
}

func (mb *memoryBus) deliver(ev *Envelope) {
	mb.mu.RLock()
	subs := make([]subscriber, 0, len(mb.subscribers))
	for _, sub := range mb.subscribers {
		if matchFilter(ev, sub.filter) {
			subs = append(subs, sub)
		}
	}
	mb.mu.RUnlock()

	for _, sub := range subs {
		select {
		case <-sub.ctx.Done():
			continue
		default:
		}
		sub.handler(sub.ctx, ev)
		mb.count(&mb.stats.Consumed)
	}
}

func matchFilter(ev *Envelope, f Filter) bool {
	match := func(val string, arr []string) bool {
		if len(arr) == 0 {
			return true
		}
		for _, v := range arr {
			if v == val {
				return true
			}
		}
		return false
	}
	return match(ev.EventType, f.Types) && match(ev.Source, f.Sources)
}

type memSub struct {
	bus *memoryBus
	id  int
}

func (s *memSub) Unsubscribe() {
	s.bus.mu.Lock()
	if sub, ok := s.bus.subscribers[s.id]; ok {
		sub.cancel()
		delete(s.bus.subscribers, s.id)
	}
	s.bus.mu.Unlock()
}
