// Package stream следит за ростом файла записи и выдает новые полные строки.
package stream

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/annel0/scc-replay/internal/logging"
)

// DefaultPollInterval минимальный интервал между опросами файла
const DefaultPollInterval = 50 * time.Millisecond

// Options настройки Tailer
type Options struct {
	// Offset число уже прочитанных байт файла (previousByteLength)
	Offset int64
	// Carry начало незаконченной строки, уже прочитанное вместе с Offset
	Carry        []byte
	PollInterval time.Duration
	// Now источник времени; nil означает time.Now
	Now    func() time.Time
	Logger *logging.Logger
}

// Stats счетчики ввода
type Stats struct {
	Polls     int   `json:"polls"`
	BytesRead int64 `json:"bytes_read"`
	Lines     int   `json:"lines"`
	Shrinks   int   `json:"shrinks"`
}

// Tailer читает дописанные в файл байты и режет их на полные строки.
// Незаконченная последняя строка остается в буфере до следующего чтения.
// Не потокобезопасен.
type Tailer struct {
	path     string
	offset   int64
	carry    []byte
	interval time.Duration
	now      func() time.Time
	lastPoll time.Time
	log      *logging.Logger
	stats    Stats
	shrunk   bool
}

// NewTailer создает Tailer для файла path
func NewTailer(path string, opts Options) *Tailer {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tailer{
		path:     path,
		offset:   opts.Offset,
		carry:    append([]byte(nil), opts.Carry...),
		interval: opts.PollInterval,
		now:      opts.Now,
		log:      opts.Logger,
	}
}

// Path путь к файлу
func (t *Tailer) Path() string { return t.path }

// Offset сколько байт файла уже поглощено
func (t *Tailer) Offset() int64 { return t.offset }

// Buffered байты незаконченной строки
func (t *Tailer) Buffered() int { return len(t.carry) }

// Stats копия счетчиков
func (t *Tailer) Stats() Stats { return t.stats }

// Due прошел ли интервал опроса
func (t *Tailer) Due() bool {
	return t.lastPoll.IsZero() || t.now().Sub(t.lastPoll) >= t.interval
}

// Poll проверяет длину файла и читает дописанное. Чаще, чем раз в
// интервал, файл не трогается. Ошибки ввода не меняют состояние,
// опрос повторится позже.
func (t *Tailer) Poll() ([]string, error) {
	if !t.Due() {
		return nil, nil
	}
	t.lastPoll = t.now()
	t.stats.Polls++

	f, err := os.Open(t.path)
	if err != nil {
		return nil, fmt.Errorf("открытие %s: %w", t.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", t.path, err)
	}

	size := info.Size()
	if size < t.offset {
		if !t.shrunk {
			t.log.Warn("файл %s уменьшился: %d < %d байт, изменения игнорируются", t.path, size, t.offset)
			t.stats.Shrinks++
		}
		t.shrunk = true
		return nil, nil
	}
	t.shrunk = false
	if size == t.offset {
		return nil, nil
	}

	data := make([]byte, size-t.offset)
	n, err := f.ReadAt(data, t.offset)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("чтение %s с %d: %w", t.path, t.offset, err)
	}
	return t.consume(data[:n]), nil
}

// Feed принимает байты, дописанные в файл, от внешнего наблюдателя.
// Строки режутся так же, как при опросе.
func (t *Tailer) Feed(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	return t.consume(data)
}

func (t *Tailer) consume(data []byte) []string {
	t.offset += int64(len(data))
	t.stats.BytesRead += int64(len(data))

	buf := append(t.carry, data...)
	last := bytes.LastIndexByte(buf, '\n')
	if last < 0 {
		t.carry = buf
		return nil
	}

	complete := buf[:last]
	lines := make([]string, 0, bytes.Count(complete, []byte{'\n'})+1)
	for _, line := range bytes.Split(complete, []byte{'\n'}) {
		lines = append(lines, string(bytes.TrimSuffix(line, []byte{'\r'})))
	}
	t.carry = append([]byte(nil), buf[last+1:]...)
	t.stats.Lines += len(lines)

	t.log.Trace("поглощено %d байт, %d строк, в буфере %d", len(data), len(lines), len(t.carry))
	return lines
}
