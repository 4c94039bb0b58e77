package engine

import (
	"math"
	"sort"

	"github.com/annel0/scc-replay/internal/timeline"
	"github.com/annel0/scc-replay/internal/vec"
	"github.com/annel0/scc-replay/internal/volume"
)

// LabelCellThreshold при меньшем числе открытых ячеек объема метка и опора скрываются
const LabelCellThreshold = 10

// Stand вертикальная опора маркера до плоскости Y=0
type Stand struct {
	Base   vec.Vec3Float `json:"base"`
	Height float64       `json:"height"`
}

// Marker отображаемое состояние сущности
type Marker struct {
	timeline.Pose
	Volume     *volume.Volume `json:"-"`
	HasVolume  bool           `json:"has_volume"`
	VoxelPitch float64        `json:"voxel_pitch"`
	ShowLabel  bool           `json:"show_label"`
	Stand      Stand          `json:"stand"`
}

// Diff изменения видимости после обновления реестра
type Diff struct {
	Shown  []string
	Hidden []string
}

// Empty нет изменений
func (d Diff) Empty() bool { return len(d.Shown) == 0 && len(d.Hidden) == 0 }

// Registry маркеры по EntityId. Маркер создается при первом появлении
// сущности и затем только обновляется; сущности вне текущего кадра
// скрываются, но не удаляются.
type Registry struct {
	markers map[string]*Marker
	visible map[string]bool
	order   []string
}

// NewRegistry создает пустой реестр
func NewRegistry() *Registry {
	return &Registry{
		markers: make(map[string]*Marker),
		visible: make(map[string]bool),
	}
}

// Update применяет позы текущего кадра
func (r *Registry) Update(poses []timeline.Pose, volumes map[string]*volume.Volume) Diff {
	var diff Diff
	current := make(map[string]bool, len(poses))
	r.order = r.order[:0]

	for _, p := range poses {
		m, ok := r.markers[p.EntityID]
		if !ok {
			m = &Marker{}
			r.markers[p.EntityID] = m
		}
		m.Pose = p
		m.VoxelPitch = p.GridSize.VoxelPitch()
		m.Volume = volumes[p.EntityID]
		m.HasVolume = m.Volume != nil
		m.ShowLabel = m.Volume == nil || m.Volume.SurfaceCount() >= LabelCellThreshold
		m.Stand = Stand{
			Base:   vec.Vec3Float{X: p.Position.X, Z: p.Position.Z},
			Height: math.Abs(p.Position.Y),
		}

		current[p.EntityID] = true
		r.order = append(r.order, p.EntityID)
		if !r.visible[p.EntityID] {
			diff.Shown = append(diff.Shown, p.EntityID)
		}
	}

	for id := range r.visible {
		if !current[id] {
			diff.Hidden = append(diff.Hidden, id)
		}
	}
	sort.Strings(diff.Hidden)
	r.visible = current
	return diff
}

// Visible видимые маркеры в порядке кадра
func (r *Registry) Visible() []Marker {
	out := make([]Marker, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.markers[id])
	}
	return out
}

// Get маркер по id; visible == false для скрытых
func (r *Registry) Get(id string) (m Marker, visible, ok bool) {
	mp, ok := r.markers[id]
	if !ok {
		return Marker{}, false, false
	}
	return *mp, r.visible[id], true
}

// Len число созданных маркеров (видимых и скрытых)
func (r *Registry) Len() int { return len(r.markers) }
