package eventbus

import (
	"context"
	"errors"

	"github.com/annel0/scc-replay/internal/logging"
)

// ErrClosed публикация в закрытую шину
var ErrClosed = errors.New("eventbus closed")

// Типы событий сессии воспроизведения
const (
	TypeFileLoaded       = "FileLoaded"
	TypeFramesAppended   = "FramesAppended"
	TypeStreamingChanged = "StreamingChanged"
	TypePlayStateChanged = "PlayStateChanged"
	TypeMarkersChanged   = "MarkersChanged"
)

// Приоритеты: смена режимов важнее потока кадров
const (
	PriorityLow    = 1
	PriorityNormal = 5
	PriorityHigh   = 8
)

// FileLoaded результат загрузки файла
type FileLoaded struct {
	Path    string         `json:"path"`
	Frames  int            `json:"frames"`
	Volumes int            `json:"volumes"`
	Issues  map[string]int `json:"issues,omitempty"`
}

// FramesAppended новые кадры растущего файла
type FramesAppended struct {
	Added     int  `json:"added"`
	Total     int  `json:"total"`
	Streaming bool `json:"streaming"`
}

// StreamingChanged включение/выключение режима стриминга
type StreamingChanged struct {
	Streaming bool   `json:"streaming"`
	Reason    string `json:"reason"`
}

// PlayStateChanged изменение состояния проигрывателя
type PlayStateChanged struct {
	Playing bool    `json:"playing"`
	Looping bool    `json:"looping"`
	Preset  string  `json:"preset"`
	Cursor  float64 `json:"cursor"`
}

// MarkersChanged сущности, ставшие видимыми и скрытые
type MarkersChanged struct {
	Shown  []string `json:"shown,omitempty"`
	Hidden []string `json:"hidden,omitempty"`
}

// Emitter публикует события одного источника в шину, не блокируя
// вызывающего. Нулевой Emitter (без шины) ничего не делает.
type Emitter struct {
	Bus           EventBus
	Source        string
	CorrelationID string
	Logger        *logging.Logger
}

// Emit упаковывает payload и публикует. Ошибки только логируются.
func (e *Emitter) Emit(eventType string, priority int, payload interface{}) {
	if e == nil || e.Bus == nil {
		return
	}
	ev, err := NewEnvelope(eventType, e.Source, e.CorrelationID, priority, payload)
	if err != nil {
		e.Logger.Warn("событие %s не создано: %v", eventType, err)
		return
	}
	// Высокий приоритет при полном буфере ждет, поэтому контекст отменяется сразу
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Bus.Publish(ctx, ev); err != nil && !errors.Is(err, context.Canceled) {
		e.Logger.Warn("событие %s не опубликовано: %v", eventType, err)
	}
}
