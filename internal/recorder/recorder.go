// Package recorder пишет синтетическую запись SCC: заголовок, кадры с
// движущимися сущностями и объемы. Используется для проверки стриминга
// на растущем файле.
package recorder

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"

	"github.com/annel0/scc-replay/internal/scc"
	"github.com/annel0/scc-replay/internal/vec"
	"github.com/annel0/scc-replay/internal/volume"
	"github.com/google/uuid"
)

// Version версия формата, которую пишет рекордер
const Version = 2

// Entity описание записываемой сущности
type Entity struct {
	ID       string
	Name     string
	Owner    string
	Faction  string
	Color    vec.Vec3Float
	Health   float64
	GridSize scc.GridSize
	// Size размер объема по каждой оси; 0 означает запись без объема
	Size int
}

var factions = []struct {
	name  string
	color vec.Vec3Float
}{
	{"Red", vec.Vec3Float{X: 1}},
	{"Blue", vec.Vec3Float{Z: 1}},
	{"Green", vec.Vec3Float{Y: 1}},
}

// RandomEntities n сущностей со случайными фракциями и размерами. Каждая
// четвертая сущность получает имя "Large Grid N", как безымянные станции.
func RandomEntities(n int, rng *rand.Rand) []Entity {
	out := make([]Entity, 0, n)
	for i := 0; i < n; i++ {
		f := factions[rng.Intn(len(factions))]
		e := Entity{
			ID:       uuid.NewString(),
			Name:     fmt.Sprintf("Ship %d", i+1),
			Owner:    fmt.Sprintf("Pilot%d", rng.Intn(100)),
			Faction:  f.name,
			Color:    f.color,
			Health:   float64(50 + rng.Intn(51)),
			GridSize: scc.GridSmall,
			Size:     2 + rng.Intn(5),
		}
		if i%4 == 3 {
			e.Name = fmt.Sprintf("Large Grid %d", i+1)
			e.GridSize = scc.GridLarge
		}
		out = append(out, e)
	}
	return out
}

// Recorder пишет кадры в w. Объемы записываются один раз после первого
// кадра, когда сущности уже объявлены.
type Recorder struct {
	w        *bufio.Writer
	entities []Entity
	motion   *Motion
	frames   int
}

// New создает рекордер
func New(w io.Writer, entities []Entity, motion *Motion) *Recorder {
	return &Recorder{w: bufio.NewWriter(w), entities: entities, motion: motion}
}

// Frames число записанных кадров
func (r *Recorder) Frames() int { return r.frames }

// WriteHeader пишет строку версии и заголовок колонок
func (r *Recorder) WriteHeader() error {
	fmt.Fprintf(r.w, "version %d\n", Version)
	fmt.Fprintln(r.w, strings.Join(scc.RequiredColumns, ","))
	return r.w.Flush()
}

// WriteFrame пишет кадр для момента t (секунды) и сбрасывает буфер
func (r *Recorder) WriteFrame(t float64) error {
	fmt.Fprintln(r.w, scc.TagStartBlock)
	for lane, e := range r.entities {
		pos := r.motion.Position(lane, t)
		rot := r.motion.Heading(lane, t)
		cols := []string{
			scc.TagGrid, e.Name, e.Owner, e.Faction,
			tuple(e.Color.X, e.Color.Y, e.Color.Z),
			e.ID,
			num(e.Health),
			tuple(pos.X, pos.Y, pos.Z),
			tuple(rot.X, rot.Y, rot.Z, rot.W),
			e.GridSize.String(),
		}
		fmt.Fprintln(r.w, strings.Join(cols, ","))
	}
	if r.frames == 0 {
		for _, e := range r.entities {
			if e.Size <= 0 {
				continue
			}
			fmt.Fprintf(r.w, "%s,%s,%s\n", scc.TagVolume, e.ID, hull(e.Size))
		}
	}
	r.frames++
	return r.w.Flush()
}

// hull шар вписанный в куб size^3
func hull(size int) string {
	c := float64(size-1) / 2
	r2 := (c + 0.5) * (c + 0.5)
	mask := volume.PackBits(size, size, size, func(x, y, z int) bool {
		dx, dy, dz := float64(x)-c, float64(y)-c, float64(z)-c
		return dx*dx+dy*dy+dz*dz <= r2
	})
	return volume.Encode(size, size, size, mask)
}

func num(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func tuple(fs ...float64) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = num(f)
	}
	return strings.Join(parts, " ")
}
