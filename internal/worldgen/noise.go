// Package worldgen генерирует детерминированный ландшафт по сиду мира.
package worldgen

import (
	"math"
	"sync"

	"github.com/aquilax/go-perlin"
)

// CompactNoise — компактное целочисленное представление значения шума.
type CompactNoise int8

const (
	noiseResolution = 255
	minNoiseValue   = -1.0
	maxNoiseValue   = 1.0
)

// FloatToCompact сжимает значение шума [-1, 1] до int8. Смещение то же,
// что и при распаковке: FloatToCompact(CompactToFloat(v)) == v, иначе
// каждый проход через кеш сдвигал бы значение на шаг квантования.
func FloatToCompact(value float64) CompactNoise {
	normalized := (value - minNoiseValue) / (maxNoiseValue - minNoiseValue)
	scaled := normalized * noiseResolution
	return CompactNoise(math.Min(127, math.Max(-127, math.Round(scaled)-127)))
}

// CompactToFloat разворачивает компактное значение обратно в float64.
func CompactToFloat(value CompactNoise) float64 {
	scaled := float64(int8(value)) + 127.0
	return scaled/noiseResolution*(maxNoiseValue-minNoiseValue) + minNoiseValue
}

type noiseKey struct {
	x, y    float64
	octaves int
}

// noiseCache кеширует компактные значения шума. При достижении ёмкости
// кеш сбрасывается целиком — простая стратегия, достаточная для
// построчной генерации чанков.
type noiseCache struct {
	mu       sync.RWMutex
	cache    map[noiseKey]CompactNoise
	capacity int
	hits     int
	misses   int
}

func newNoiseCache(capacity int) *noiseCache {
	return &noiseCache{cache: make(map[noiseKey]CompactNoise), capacity: capacity}
}

func (nc *noiseCache) get(k noiseKey) (float64, bool) {
	nc.mu.RLock()
	v, ok := nc.cache[k]
	nc.mu.RUnlock()

	nc.mu.Lock()
	if ok {
		nc.hits++
	} else {
		nc.misses++
	}
	nc.mu.Unlock()

	if !ok {
		return 0, false
	}
	return CompactToFloat(v), true
}

func (nc *noiseCache) put(k noiseKey, value float64) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	if len(nc.cache) >= nc.capacity {
		nc.cache = make(map[noiseKey]CompactNoise)
	}
	nc.cache[k] = FloatToCompact(value)
}

// Stats возвращает счётчики попаданий и промахов.
func (nc *noiseCache) stats() (hits, misses int) {
	nc.mu.RLock()
	defer nc.mu.RUnlock()
	return nc.hits, nc.misses
}

// NoiseMap — шум Перлина с октавами и кешем значений.
type NoiseMap struct {
	perlin      *perlin.Perlin
	scale       float64
	persistence float64
	lacunarity  float64
	cache       *noiseCache
}

// NewNoiseMap создаёт карту шума для сида и масштаба.
func NewNoiseMap(seed int64, scale float64) *NoiseMap {
	return &NoiseMap{
		perlin:      perlin.NewPerlin(2.0, 2.0, 3, seed),
		scale:       scale,
		persistence: 0.5,
		lacunarity:  2.0,
		cache:       newNoiseCache(10000),
	}
}

// GetOctave2D возвращает значение шума [-1, 1] с наложением октав.
func (nm *NoiseMap) GetOctave2D(x, y float64, octaves int) float64 {
	key := noiseKey{x: x, y: y, octaves: octaves}
	if v, ok := nm.cache.get(key); ok {
		return v
	}

	sx := x * nm.scale
	sy := y * nm.scale

	amplitude := 1.0
	frequency := 1.0
	total := 0.0
	maxValue := 0.0
	for i := 0; i < octaves; i++ {
		total += nm.perlin.Noise2D(sx*frequency, sy*frequency) * amplitude
		maxValue += amplitude
		amplitude *= nm.persistence
		frequency *= nm.lacunarity
	}

	// Квантуем до кешируемой точности ещё на холодном пути: повторный
	// запрос обязан вернуть ровно то же значение, что и первый
	value := CompactToFloat(FloatToCompact(total / maxValue))
	nm.cache.put(key, value)
	return value
}

// GetNormalized2D возвращает значение шума в диапазоне [0, 1].
func (nm *NoiseMap) GetNormalized2D(x, y float64) float64 {
	return (nm.GetOctave2D(x, y, 3) + 1) / 2
}

// ClearCache сбрасывает кеш значений.
func (nm *NoiseMap) ClearCache() {
	nm.cache.mu.Lock()
	nm.cache.cache = make(map[noiseKey]CompactNoise)
	nm.cache.mu.Unlock()
}
