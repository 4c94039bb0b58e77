package eventbus

import (
	"context"

	"github.com/annel0/scc-replay/internal/logging"
)

// StartLoggingListener подписывается на все события и пишет их в лог
// компонента. Функция неблокирующая.
func StartLoggingListener(bus EventBus, log *logging.Logger) (Subscription, error) {
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		log.Debug("[EventBus] %s %s src=%s session=%s prio=%d %s", ev.ID, ev.EventType, ev.Source, ev.CorrelationID, ev.Priority, ev.Payload)
	})
	if err != nil {
		return nil, err
	}
	log.Info("🪵 LoggingListener: подписка на события сессии активирована")
	return sub, nil
}
