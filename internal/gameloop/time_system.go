package gameloop

import (
	"context"
	"time"
)

// TimeSystem отвечает за ход игрового времени.
type TimeSystem struct {
	deps  Dependencies
	ticks int64
	day   int32
}

const (
	ticksPerDay = 24000 // ~20 минут при 20 TPS
	logEvery    = 1200  // раз в минуту
)

func NewTimeSystem() *TimeSystem { return &TimeSystem{} }

func (t *TimeSystem) Name() string { return "time" }

func (t *TimeSystem) Init(deps Dependencies) error {
	t.deps = deps
	return nil
}

// Ticks возвращает число прошедших игровых тиков.
func (t *TimeSystem) Ticks() int64 { return t.ticks }

// Day возвращает номер текущего игрового дня.
func (t *TimeSystem) Day() int32 { return t.day }

func (t *TimeSystem) Tick(ctx context.Context, dt time.Duration) {
	// Один Tick цикла == 1 игровой тик
	t.ticks++
	if t.ticks%ticksPerDay == 0 {
		t.day++
		t.deps.Log.Infow("new game day", "day", t.day)
	}
	if t.ticks%logEvery == 0 {
		t.deps.Log.Debugw("time advanced",
			"tick", t.ticks, "dayTime", t.ticks%ticksPerDay, "day", t.day)
	}
}
