package scc

import (
	"errors"

	"github.com/annel0/scc-replay/internal/volume"
)

// maxIssueSamples сколько первых проблем сохраняется в сводке
const maxIssueSamples = 32

// Категории проблем разбора (используются также как метки метрик)
const (
	IssueMalformedRow    = "malformed_row"
	IssueOrphanGridEntry = "orphan_grid_entry"
	IssueDuplicateVolume = "duplicate_volume"
	IssueUnknownEntity   = "unknown_entity"
	IssueDuplicateEntity = "duplicate_entity"
	IssueDecodeFailure   = "decode_failure"
	IssueUnknownKind     = "unknown_kind"
)

// IssueCategory возвращает категорию ошибки строки
func IssueCategory(err error) string {
	switch {
	case errors.Is(err, ErrOrphanGridEntry):
		return IssueOrphanGridEntry
	case errors.Is(err, ErrDuplicateVolume):
		return IssueDuplicateVolume
	case errors.Is(err, ErrUnknownEntity):
		return IssueUnknownEntity
	case errors.Is(err, ErrDuplicateEntity):
		return IssueDuplicateEntity
	case errors.Is(err, volume.ErrDecodeFailure):
		return IssueDecodeFailure
	case errors.Is(err, ErrUnknownEntryKind):
		return IssueUnknownKind
	default:
		return IssueMalformedRow
	}
}

// Summary сводка загрузки: накапливается по всем сегментам сессии
type Summary struct {
	Version int            `json:"version"`
	Lines   int            `json:"lines"`
	Frames  int            `json:"frames"`
	Volumes int            `json:"volumes"`
	Aborted int            `json:"aborted_segments"`
	Issues  map[string]int `json:"issues"`
	Samples []string       `json:"samples,omitempty"`
	Unknown []string       `json:"unexpected_columns,omitempty"`
}

func newSummary(version int) Summary {
	return Summary{Version: version, Issues: make(map[string]int)}
}

// IssueCount общее число проблем
func (s Summary) IssueCount() int {
	total := 0
	for _, n := range s.Issues {
		total += n
	}
	return total
}

func (s *Summary) record(err *RowError) {
	s.Issues[IssueCategory(err)]++
	if len(s.Samples) < maxIssueSamples {
		s.Samples = append(s.Samples, err.Error())
	}
}

// clone копия для выдачи наружу
func (s Summary) clone() Summary {
	c := s
	c.Issues = make(map[string]int, len(s.Issues))
	for k, v := range s.Issues {
		c.Issues[k] = v
	}
	c.Samples = append([]string(nil), s.Samples...)
	c.Unknown = append([]string(nil), s.Unknown...)
	return c
}
