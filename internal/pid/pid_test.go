package pid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProportionalOnly(t *testing.T) {
	c := New(Gains{Kp: 2}, 0)
	assert.Equal(t, 3.0, c.Update(1.5, 0.1))
}

func TestIntegralAccumulatesAndClamps(t *testing.T) {
	c := New(Gains{Ki: 1}, 2)

	c.Update(1, 1)
	assert.Equal(t, 1.0, c.Integral())

	for i := 0; i < 10; i++ {
		c.Update(1, 1)
	}
	assert.Equal(t, 2.0, c.Integral(), "интеграл ограничен сверху")

	for i := 0; i < 10; i++ {
		c.Update(-5, 1)
	}
	assert.Equal(t, -2.0, c.Integral(), "интеграл ограничен снизу")
}

func TestDerivative(t *testing.T) {
	c := New(Gains{Kd: 1}, 0)
	assert.Equal(t, 0.0, c.Update(1, 0.5), "на первом шаге производной нет")
	assert.Equal(t, 4.0, c.Update(3, 0.5))
	assert.Equal(t, 3.0, c.PrevError())
}

func TestZeroDtDoesNotAccumulate(t *testing.T) {
	c := New(Gains{Kp: 1, Ki: 1, Kd: 1}, 0)
	out := c.Update(2, 0)
	assert.Equal(t, 2.0, out)
	assert.Equal(t, 0.0, c.Integral())
}

func TestReset(t *testing.T) {
	c := New(Gains{Ki: 1, Kd: 1}, 0)
	c.Update(1, 1)
	c.Update(2, 1)
	c.Reset()
	assert.Equal(t, 0.0, c.Integral())
	assert.Equal(t, 0.0, c.PrevError())
	assert.Equal(t, 0.0, c.Update(1, 1)-1, "после сброса производная снова нулевая")
}

func TestBufferedFrames(t *testing.T) {
	assert.Equal(t, 10.0, BufferedFrames(10, 0))
	assert.Equal(t, 0.0, BufferedFrames(10, 1))
	assert.Equal(t, 5.0, BufferedFrames(10, 0.5))
}

func TestSpeedControllerDirection(t *testing.T) {
	// Большой запас впереди, ускоряемся
	s := NewSpeedController(New(Gains{Kp: 0.5}, 10), 1, 0.25, 4)
	fast := s.Speed(10, 0.5, 0.016)
	assert.Greater(t, fast, 1.0)
	assert.Equal(t, 5.0, s.LastBuffered())

	// Запас меньше целевого, замедляемся
	s = NewSpeedController(New(Gains{Kp: 0.5}, 10), 1, 0.25, 4)
	slow := s.Speed(10, 1, 0.016)
	assert.Less(t, slow, 1.0)
}

func TestSpeedControllerClamps(t *testing.T) {
	s := NewSpeedController(New(Gains{Kp: 100}, 10), 1, 0.25, 4)
	assert.Equal(t, 4.0, s.Speed(1000, 0, 0.016))
	assert.Equal(t, 0.25, s.Speed(1000, 1, 0.016))

	s.Reset()
	assert.Equal(t, 1.0, s.LastSpeed())
}
