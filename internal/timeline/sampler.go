package timeline

import (
	"github.com/annel0/scc-replay/internal/scc"
	"github.com/annel0/scc-replay/internal/vec"
)

// Pose интерполированное состояние сущности на момент курсора
type Pose struct {
	EntityID     string        `json:"entity_id"`
	Name         string        `json:"name"`
	Owner        string        `json:"owner"`
	Faction      string        `json:"faction"`
	FactionColor vec.Vec3Float `json:"faction_color"`
	Health       float64       `json:"health"`
	GridSize     scc.GridSize  `json:"grid_size"`
	Position     vec.Vec3Float `json:"position"`
	Orientation  vec.Quat      `json:"orientation"`
}

// Sample вычисляет позы всех сущностей текущего кадра.
// Чистая функция от (таймлайн, курсор); индексы всегда в [0, N-1].
func Sample(tl *Timeline, cursor float64) (Position, []Pose) {
	pos, ok := Locate(cursor, tl.Len())
	if !ok {
		return Position{}, nil
	}

	current := tl.Frame(pos.Index)
	next := current
	if pos.Index+1 < tl.Len() {
		next = tl.Frame(pos.Index + 1)
	}

	poses := make([]Pose, 0, current.Len())
	for i := 0; i < current.Len(); i++ {
		e := current.At(i)
		to, found := next.Find(e.EntityID)
		if !found {
			to = e
		}
		poses = append(poses, Pose{
			EntityID:     e.EntityID,
			Name:         e.Name,
			Owner:        e.Owner,
			Faction:      e.Faction,
			FactionColor: e.FactionColor,
			Health:       e.Health,
			GridSize:     e.GridSize,
			Position:     e.Position.Lerp(to.Position, pos.T),
			Orientation:  e.Orientation.Slerp(to.Orientation, pos.T),
		})
	}
	return pos, poses
}
