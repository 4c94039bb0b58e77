// Package scc разбирает текстовый формат записи SCC: строка версии,
// заголовок колонок и строки start_block / grid / volume.
package scc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/annel0/scc-replay/internal/logging"
	"github.com/annel0/scc-replay/internal/vec"
	"github.com/annel0/scc-replay/internal/volume"
)

// Теги строк
const (
	TagStartBlock = "start_block"
	TagGrid       = "grid"
	TagVolume     = "volume"
)

// RequiredColumns обязательные колонки заголовка (порядок не важен)
var RequiredColumns = []string{
	"kind", "name", "owner", "faction", "factionColor",
	"entityId", "health", "position", "rotation", "gridSize",
}

// Options настройки парсера
type Options struct {
	SupportedVersion int
	Decoder          *volume.Decoder
	Logger           *logging.Logger
}

// Batch кадры и объемы, готовые к добавлению в сессию
type Batch struct {
	Frames  []*Frame
	Volumes []*volume.Volume
}

// Parser хранит состояние между инкрементальными вызовами одной сессии.
// Не потокобезопасен.
type Parser struct {
	opts    Options
	decoder *volume.Decoder
	log     *logging.Logger

	columns map[string]int
	ncols   int
	ready   bool

	// open последний открытый кадр; в инкрементальном режиме он остается
	// незакрытым до следующего start_block
	open *Frame
	// tail последний кадр, закрытый ParseFull или Flush. Строки grid до
	// следующего start_block продолжают его: файл мог быть прочитан
	// посреди блока.
	tail       *Frame
	knownSizes map[string]GridSize
	volumeIDs  map[string]struct{}

	line    int
	summary Summary
}

// NewParser создает парсер
func NewParser(opts Options) *Parser {
	dec := opts.Decoder
	if dec == nil {
		dec = &volume.Decoder{Logger: opts.Logger}
	}
	p := &Parser{opts: opts, decoder: dec, log: opts.Logger}
	p.reset()
	return p
}

func (p *Parser) reset() {
	p.columns = nil
	p.ncols = 0
	p.ready = false
	p.open = nil
	p.tail = nil
	p.knownSizes = make(map[string]GridSize)
	p.volumeIDs = make(map[string]struct{})
	p.line = 0
	p.summary = newSummary(p.opts.SupportedVersion)
}

// Summary копия накопленной сводки
func (p *Parser) Summary() Summary { return p.summary.clone() }

// LineNumber число обработанных строк файла
func (p *Parser) LineNumber() int { return p.line }

// Pending есть ли незакрытый кадр
func (p *Parser) Pending() bool { return p.open != nil }

// ParseFull разбирает файл целиком. Все кадры, включая последний,
// закрываются; строки grid, пришедшие затем в ParseLines до первого
// start_block, дописываются в последний кадр. При ErrVersionMismatch /
// ErrSchemaMismatch результат пуст.
func (p *Parser) ParseFull(text string) (Batch, error) {
	p.reset()
	rows := strings.Split(text, "\n")

	if err := p.checkVersion(rows[0]); err != nil {
		return Batch{}, err
	}
	if len(rows) < 2 {
		return Batch{}, &SchemaError{Missing: append([]string(nil), RequiredColumns...)}
	}
	if err := p.readHeader(rows[1]); err != nil {
		return Batch{}, err
	}

	p.line = 2
	batch := p.parseRows(rows[2:])
	if p.open != nil {
		batch.Frames = append(batch.Frames, p.open)
		p.summary.Frames++
		p.tail = p.open
		p.open = nil
	}

	p.log.Info("SCC разобран: %d строк, %d кадров, %d объемов, проблем: %d",
		p.line, p.summary.Frames, p.summary.Volumes, p.summary.IssueCount())
	return batch, nil
}

// ParseLines разбирает новые строки растущего файла. Кадр, открытый
// последним start_block, возвращается только после следующего start_block.
func (p *Parser) ParseLines(lines []string) Batch {
	if !p.ready {
		p.log.Warn("инкрементальный разбор без заголовка: %d строк пропущено", len(lines))
		return Batch{}
	}
	batch := p.parseRows(lines)
	if len(batch.Frames) > 0 || len(batch.Volumes) > 0 {
		p.log.Debug("инкремент: +%d кадров, +%d объемов (строка %d)", len(batch.Frames), len(batch.Volumes), p.line)
	}
	return batch
}

// Flush закрывает незакрытый кадр (например, когда запись завершена)
func (p *Parser) Flush() *Frame {
	f := p.open
	if f != nil {
		p.summary.Frames++
		p.tail = f
		p.open = nil
	}
	return f
}

func (p *Parser) checkVersion(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 2 && fields[0] == "version" {
		if v, err := strconv.Atoi(fields[1]); err == nil && v == p.opts.SupportedVersion {
			return nil
		}
	}
	return fmt.Errorf("%w: ожидалось \"version %d\", получено %q", ErrVersionMismatch, p.opts.SupportedVersion, strings.TrimSpace(line))
}

func (p *Parser) readHeader(line string) error {
	names := strings.Split(strings.TrimRight(line, "\r"), ",")
	columns := make(map[string]int, len(names))
	for i, name := range names {
		name = strings.TrimSpace(name)
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}

	required := make(map[string]struct{}, len(RequiredColumns))
	schemaErr := &SchemaError{}
	for _, name := range RequiredColumns {
		required[name] = struct{}{}
		if _, ok := columns[name]; !ok {
			schemaErr.Missing = append(schemaErr.Missing, name)
		}
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if _, ok := required[name]; !ok {
			schemaErr.Unexpected = append(schemaErr.Unexpected, name)
		}
	}

	if len(schemaErr.Missing) > 0 {
		return schemaErr
	}
	if len(schemaErr.Unexpected) > 0 {
		p.log.Debug("дополнительные колонки проигнорированы: %s", strings.Join(schemaErr.Unexpected, ","))
	}

	p.columns = columns
	p.ncols = len(names)
	p.summary.Unknown = schemaErr.Unexpected
	p.ready = true
	return nil
}

// parseRows общий цикл разбора для обоих режимов
func (p *Parser) parseRows(rows []string) Batch {
	var batch Batch
	for i, row := range rows {
		p.line++
		row = strings.TrimRight(row, "\r")
		if strings.TrimSpace(row) == "" {
			continue
		}

		cols := strings.Split(row, ",")
		kind := strings.TrimSpace(cols[0])
		switch kind {
		case TagStartBlock:
			if p.open != nil {
				batch.Frames = append(batch.Frames, p.open)
				p.summary.Frames++
			}
			p.open = newFrame()
			p.tail = nil

		case TagGrid:
			frame := p.open
			if frame == nil {
				frame = p.tail
			}
			if frame == nil {
				p.issue(&RowError{Line: p.line, Kind: kind, Err: ErrOrphanGridEntry})
				p.summary.Aborted++
				// Остаток сегмента не разбирается, но строки считаются
				p.line += len(rows) - i - 1
				p.summary.Lines = p.line
				return batch
			}
			snap, err := p.parseGrid(cols)
			if err != nil {
				p.issue(&RowError{Line: p.line, Kind: kind, Err: err})
				continue
			}
			if !frame.add(snap) {
				p.issue(&RowError{Line: p.line, Kind: kind, Err: fmt.Errorf("%w: %s", ErrDuplicateEntity, snap.EntityID)})
				continue
			}
			p.knownSizes[snap.EntityID] = snap.GridSize

		case TagVolume:
			v, err := p.parseVolume(cols)
			if err != nil {
				p.issue(&RowError{Line: p.line, Kind: kind, Err: err})
				continue
			}
			p.volumeIDs[v.EntityID()] = struct{}{}
			batch.Volumes = append(batch.Volumes, v)
			p.summary.Volumes++

		default:
			p.issue(&RowError{Line: p.line, Kind: kind, Err: fmt.Errorf("%w: %q", ErrUnknownEntryKind, kind)})
		}
	}
	p.summary.Lines = p.line
	return batch
}

func (p *Parser) issue(err *RowError) {
	p.summary.record(err)
	p.log.Warn("SCC: %v", err)
}

func (p *Parser) col(cols []string, name string) string {
	return strings.TrimSpace(cols[p.columns[name]])
}

func (p *Parser) parseGrid(cols []string) (EntitySnapshot, error) {
	if len(cols) != p.ncols {
		return EntitySnapshot{}, fmt.Errorf("%w: %d колонок, ожидалось %d", ErrMalformedRow, len(cols), p.ncols)
	}

	snap := EntitySnapshot{
		EntityID: p.col(cols, "entityId"),
		Name:     p.col(cols, "name"),
		Owner:    p.col(cols, "owner"),
		Faction:  p.col(cols, "faction"),
	}
	if snap.EntityID == "" {
		return EntitySnapshot{}, fmt.Errorf("%w: пустой entityId", ErrMalformedRow)
	}

	pos, err := parseFloats(p.col(cols, "position"), 3)
	if err != nil {
		return EntitySnapshot{}, fmt.Errorf("%w: position: %v", ErrMalformedRow, err)
	}
	snap.Position = vec.Vec3Float{X: pos[0], Y: pos[1], Z: pos[2]}

	rot, err := parseFloats(p.col(cols, "rotation"), 4)
	if err != nil {
		return EntitySnapshot{}, fmt.Errorf("%w: rotation: %v", ErrMalformedRow, err)
	}
	snap.Orientation = vec.Quat{X: rot[0], Y: rot[1], Z: rot[2], W: rot[3]}

	color, err := parseFloats(p.col(cols, "factionColor"), 3)
	if err != nil {
		return EntitySnapshot{}, fmt.Errorf("%w: factionColor: %v", ErrMalformedRow, err)
	}
	snap.FactionColor = vec.Vec3Float{X: color[0], Y: color[1], Z: color[2]}

	if h := p.col(cols, "health"); h != "" {
		snap.Health, err = strconv.ParseFloat(h, 64)
		if err != nil {
			return EntitySnapshot{}, fmt.Errorf("%w: health: %v", ErrMalformedRow, err)
		}
	}

	snap.GridSize, err = ParseGridSize(p.col(cols, "gridSize"))
	if err != nil {
		return EntitySnapshot{}, fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}
	return snap, nil
}

func (p *Parser) parseVolume(cols []string) (*volume.Volume, error) {
	if len(cols) != 3 {
		return nil, fmt.Errorf("%w: volume ожидает 3 поля, получено %d", ErrMalformedRow, len(cols))
	}
	entityID := strings.TrimSpace(cols[1])
	if _, ok := p.knownSizes[entityID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}
	if _, dup := p.volumeIDs[entityID]; dup {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateVolume, entityID)
	}
	return p.decoder.Decode(entityID, strings.TrimSpace(cols[2]))
}

// parseFloats разбирает кортеж чисел через пробел ровно из n элементов
func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Fields(s)
	if len(parts) != n {
		return nil, fmt.Errorf("ожидалось %d чисел, получено %d в %q", n, len(parts), s)
	}
	out := make([]float64, n)
	for i, part := range parts {
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
