package vec

import "math"

// Quat кватернион ориентации (x, y, z, w)
type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// QuatIdentity единичный поворот
var QuatIdentity = Quat{W: 1}

// Dot скалярное произведение
func (q Quat) Dot(other Quat) float64 {
	return q.X*other.X + q.Y*other.Y + q.Z*other.Z + q.W*other.W
}

// Length возвращает норму кватерниона
func (q Quat) Length() float64 {
	return math.Sqrt(q.Dot(q))
}

// Normalized возвращает единичный кватернион.
// Для нулевого кватерниона возвращается QuatIdentity.
func (q Quat) Normalized() Quat {
	l := q.Length()
	if l == 0 {
		return QuatIdentity
	}
	return Quat{X: q.X / l, Y: q.Y / l, Z: q.Z / l, W: q.W / l}
}

func (q Quat) scale(s float64) Quat {
	return Quat{X: q.X * s, Y: q.Y * s, Z: q.Z * s, W: q.W * s}
}

func (q Quat) add(other Quat) Quat {
	return Quat{X: q.X + other.X, Y: q.Y + other.Y, Z: q.Z + other.Z, W: q.W + other.W}
}

// Slerp сферическая интерполяция по кратчайшему пути.
// Оба входа нормализуются перед интерполяцией.
func (q Quat) Slerp(to Quat, t float64) Quat {
	a := q.Normalized()
	b := to.Normalized()

	cos := a.Dot(b)
	if cos < 0 {
		// q и -q задают один поворот, выбираем короткую дугу
		b = b.scale(-1)
		cos = -cos
	}

	// Почти совпадающие ориентации: nlerp устойчивее
	if cos > 0.9995 {
		return a.add(b.add(a.scale(-1)).scale(t)).Normalized()
	}

	theta := math.Acos(cos)
	sin := math.Sin(theta)
	wa := math.Sin((1-t)*theta) / sin
	wb := math.Sin(t*theta) / sin
	return a.scale(wa).add(b.scale(wb))
}
