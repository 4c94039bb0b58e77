package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/annel0/scc-replay/internal/app"
	"github.com/annel0/scc-replay/internal/engine"
	"github.com/annel0/scc-replay/internal/vec"
	"github.com/gin-gonic/gin"
)

// LoadRequest запрос на загрузку файла записи
type LoadRequest struct {
	Path string `json:"path" binding:"required"`
}

// CursorRequest новая позиция курсора, 0..1
type CursorRequest struct {
	Cursor *float64 `json:"cursor" binding:"required"`
}

// PlayRequest пустое Playing переключает воспроизведение
type PlayRequest struct {
	Playing *bool `json:"playing"`
}

// SpeedRequest индекс пресета скорости
type SpeedRequest struct {
	Preset *int `json:"preset" binding:"required"`
}

// LoopRequest включение зацикливания
type LoopRequest struct {
	Looping bool `json:"looping"`
}

// TrackRequest пустой EntityID снимает слежение
type TrackRequest struct {
	EntityID string `json:"entity_id"`
}

// VolumeResponse поверхность объема сущности
type VolumeResponse struct {
	EntityID string     `json:"entity_id"`
	Width    int        `json:"width"`
	Height   int        `json:"height"`
	Depth    int        `json:"depth"`
	Cells    int        `json:"cells"`
	Surface  []vec.Vec3 `json:"surface"`
}

// withSession выполняет fn под мьютексом хоста и переводит ErrNoSession в 409
func (rs *RestServer) withSession(c *gin.Context, fn func(s *engine.Session) error) bool {
	err := rs.viewer.Do(fn)
	switch {
	case err == nil:
		return true
	case errors.Is(err, app.ErrNoSession):
		fail(c, http.StatusConflict, "Файл записи не загружен")
	default:
		fail(c, http.StatusBadRequest, err.Error())
	}
	return false
}

func (rs *RestServer) handleLoad(c *gin.Context) {
	var req LoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}

	summary, err := rs.viewer.Load(c.Request.Context(), req.Path)
	if err != nil {
		rs.log.Warn("загрузка %s через API: %v", req.Path, err)
		c.JSON(http.StatusUnprocessableEntity, GenericResponse{
			Success: false,
			Message: err.Error(),
			Data:    summary,
		})
		return
	}
	ok(c, "Файл загружен", summary)
}

func (rs *RestServer) handleSession(c *gin.Context) {
	var status engine.Status
	if rs.withSession(c, func(s *engine.Session) error {
		status = s.Status()
		return nil
	}) {
		ok(c, "Состояние сессии", status)
	}
}

func (rs *RestServer) handlePoses(c *gin.Context) {
	var markers []engine.Marker
	if rs.withSession(c, func(s *engine.Session) error {
		markers = s.CurrentPoses()
		return nil
	}) {
		ok(c, "Позы текущего кадра", markers)
	}
}

func (rs *RestServer) handleEntities(c *gin.Context) {
	var items []engine.EntityItem
	if rs.withSession(c, func(s *engine.Session) error {
		items = s.Entities()
		return nil
	}) {
		ok(c, "Сущности текущего кадра", items)
	}
}

func (rs *RestServer) handleVolume(c *gin.Context) {
	id := c.Param("id")
	var (
		resp  VolumeResponse
		found bool
	)
	if !rs.withSession(c, func(s *engine.Session) error {
		v, exists := s.Volume(id)
		if !exists {
			return nil
		}
		found = true
		w, h, d := v.Size()
		resp = VolumeResponse{EntityID: id, Width: w, Height: h, Depth: d, Cells: v.Count(), Surface: v.Surface()}
		return nil
	}) {
		return
	}
	if !found {
		fail(c, http.StatusNotFound, "Объем не найден")
		return
	}
	ok(c, "Объем сущности", resp)
}

func (rs *RestServer) handleCursor(c *gin.Context) {
	var req CursorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}
	var cursor float64
	if rs.withSession(c, func(s *engine.Session) error {
		s.SetCursor(*req.Cursor)
		cursor = s.Cursor()
		return nil
	}) {
		ok(c, "Курсор установлен", gin.H{"cursor": cursor})
	}
}

func (rs *RestServer) handleScrubStart(c *gin.Context) {
	if rs.withSession(c, func(s *engine.Session) error {
		s.BeginScrub()
		return nil
	}) {
		ok(c, "Перетаскивание начато", nil)
	}
}

func (rs *RestServer) handleScrubEnd(c *gin.Context) {
	if rs.withSession(c, func(s *engine.Session) error {
		s.EndScrub()
		return nil
	}) {
		ok(c, "Перетаскивание завершено", nil)
	}
}

func (rs *RestServer) handlePlay(c *gin.Context) {
	var req PlayRequest
	// пустое тело допустимо; при chunked длина неизвестна (-1)
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			fail(c, http.StatusBadRequest, "Неверный формат запроса")
			return
		}
	}
	var playing bool
	if rs.withSession(c, func(s *engine.Session) error {
		if req.Playing == nil {
			playing = s.TogglePlaying()
			return nil
		}
		s.SetPlaying(*req.Playing)
		playing = *req.Playing
		return nil
	}) {
		ok(c, "Воспроизведение", gin.H{"playing": playing})
	}
}

func (rs *RestServer) handleSpeed(c *gin.Context) {
	var req SpeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}
	var status engine.Status
	if rs.withSession(c, func(s *engine.Session) error {
		if err := s.SetSpeedPreset(*req.Preset); err != nil {
			return err
		}
		status = s.Status()
		return nil
	}) {
		ok(c, "Пресет скорости", gin.H{"preset": status.Preset, "preset_index": status.PresetIndex})
	}
}

func (rs *RestServer) handleLoop(c *gin.Context) {
	var req LoopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}
	if rs.withSession(c, func(s *engine.Session) error {
		s.SetLooping(req.Looping)
		return nil
	}) {
		ok(c, "Зацикливание", gin.H{"looping": req.Looping})
	}
}

func (rs *RestServer) handleTrack(c *gin.Context) {
	var req TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}
	var tr engine.Tracking
	if rs.withSession(c, func(s *engine.Session) error {
		tr = s.Track(req.EntityID)
		return nil
	}) {
		ok(c, "Слежение", tr)
	}
}

func (rs *RestServer) handleTracked(c *gin.Context) {
	var tr engine.Tracking
	if rs.withSession(c, func(s *engine.Session) error {
		tr = s.Tracked()
		return nil
	}) {
		ok(c, "Слежение", tr)
	}
}
