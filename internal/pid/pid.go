// Package pid реализует ПИД-регулятор скорости воспроизведения при стриминге.
package pid

import "math"

// Gains коэффициенты регулятора
type Gains struct {
	Kp float64
	Ki float64
	Kd float64
}

// Controller состояние регулятора одной сессии воспроизведения
type Controller struct {
	gains         Gains
	integralLimit float64

	integral  float64
	prevError float64
	hasPrev   bool
}

// New создает регулятор. integralLimit <= 0 отключает ограничение интеграла.
func New(gains Gains, integralLimit float64) *Controller {
	return &Controller{gains: gains, integralLimit: integralLimit}
}

// Update обновляет регулятор ошибкой error за время dt (секунды) и
// возвращает управляющее воздействие. При dt <= 0 интеграл и производная
// не обновляются.
func (c *Controller) Update(err, dt float64) float64 {
	if dt <= 0 || math.IsNaN(dt) {
		return c.gains.Kp*err + c.gains.Ki*c.integral
	}

	c.integral += err * dt
	if c.integralLimit > 0 {
		c.integral = clamp(c.integral, -c.integralLimit, c.integralLimit)
	}

	derivative := 0.0
	if c.hasPrev {
		derivative = (err - c.prevError) / dt
	}
	c.prevError = err
	c.hasPrev = true

	return c.gains.Kp*err + c.gains.Ki*c.integral + c.gains.Kd*derivative
}

// Reset обнуляет накопленное состояние
func (c *Controller) Reset() {
	c.integral = 0
	c.prevError = 0
	c.hasPrev = false
}

// Integral накопленный интеграл ошибки
func (c *Controller) Integral() float64 { return c.integral }

// PrevError ошибка предыдущего шага
func (c *Controller) PrevError() float64 { return c.prevError }

// SpeedController переводит запас кадров в множитель скорости
type SpeedController struct {
	pid          *Controller
	target       float64
	minSpeed     float64
	maxSpeed     float64
	lastSpeed    float64
	lastBuffered float64
}

// NewSpeedController создает регулятор скорости с целевым запасом target кадров
func NewSpeedController(c *Controller, target, minSpeed, maxSpeed float64) *SpeedController {
	return &SpeedController{pid: c, target: target, minSpeed: minSpeed, maxSpeed: maxSpeed, lastSpeed: 1}
}

// BufferedFrames запас кадров впереди курсора: N - cursor*N
func BufferedFrames(frames int, cursor float64) float64 {
	n := float64(frames)
	return n - cursor*n
}

// Speed вычисляет множитель скорости clamp(1 - u, min, max), где u
// это выход ПИД по ошибке target - buffered.
func (s *SpeedController) Speed(frames int, cursor, dt float64) float64 {
	s.lastBuffered = BufferedFrames(frames, cursor)
	adjustment := s.pid.Update(s.target-s.lastBuffered, dt)
	s.lastSpeed = clamp(1-adjustment, s.minSpeed, s.maxSpeed)
	return s.lastSpeed
}

// LastSpeed последний вычисленный множитель
func (s *SpeedController) LastSpeed() float64 { return s.lastSpeed }

// LastBuffered последний измеренный запас кадров
func (s *SpeedController) LastBuffered() float64 { return s.lastBuffered }

// Reset сбрасывает регулятор
func (s *SpeedController) Reset() {
	s.pid.Reset()
	s.lastSpeed = 1
	s.lastBuffered = 0
}

// PID доступ к внутреннему регулятору
func (s *SpeedController) PID() *Controller { return s.pid }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
