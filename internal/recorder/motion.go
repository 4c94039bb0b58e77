package recorder

import (
	"math"

	"github.com/annel0/scc-replay/internal/vec"
	"github.com/aquilax/go-perlin"
)

// Motion плавная траектория на шуме Перлина. Каждая сущность читает шум
// в своей полосе, поэтому траектории не совпадают.
type Motion struct {
	noise *perlin.Perlin
	// Radius амплитуда смещения по X/Z
	Radius float64
	// Lift амплитуда смещения по Y
	Lift float64
}

// NewMotion инициализирует генератор шума с указанным сидом
func NewMotion(seed int64) *Motion {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав
	return &Motion{
		noise:  perlin.NewPerlin(alpha, beta, n, seed),
		Radius: 200,
		Lift:   50,
	}
}

// Position позиция сущности с номером lane в момент t (секунды)
func (m *Motion) Position(lane int, t float64) vec.Vec3Float {
	band := float64(lane) * 10
	return vec.Vec3Float{
		X: m.noise.Noise2D(t*0.05, band) * m.Radius,
		Y: m.noise.Noise2D(band, t*0.05) * m.Lift,
		Z: m.noise.Noise2D(t*0.05+100, band+5) * m.Radius,
	}
}

// Heading поворот вокруг оси Y по направлению движения
func (m *Motion) Heading(lane int, t float64) vec.Quat {
	const dt = 0.5
	d := m.Position(lane, t+dt).Sub(m.Position(lane, t))
	if d.X == 0 && d.Z == 0 {
		return vec.QuatIdentity
	}
	yaw := math.Atan2(d.X, d.Z)
	return vec.Quat{Y: math.Sin(yaw / 2), W: math.Cos(yaw / 2)}
}
