package game

import "time"

const (
	ArenaHalfExtent float64 = 8.0 // X/Z はいずれも [-8, 8]
	MoveStep        float64 = 0.1 // 1tick あたりの移動量

	HitRadius       float64 = 0.8
	DamagePerPoint          = 2
	DamageCap               = 25
	MinStrokePoints         = 2
	StrokeThickness float64 = 0.05

	DefaultMaxHealth = 100
	KillScore        = 100

	PowerUpSpawnDelay    = 5 * time.Second
	PowerUpSpawnInterval = 15 * time.Second
	PowerUpDuration      = 30 * time.Second
	EffectDuration       = 10 * time.Second
	EffectMultiplier     = 1.5
	SweepInterval        = time.Second

	HealthPickupAmount         = 25
	PickupRadius       float64 = 1.0
	PowerUpHeight      float64 = 0.5
)
