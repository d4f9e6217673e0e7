package worldgen

// BiomeType перечисляет биомы мира.
type BiomeType int

const (
	BiomeOcean BiomeType = iota
	BiomeBeach
	BiomeDesert
	BiomePlains
	BiomeForest
	BiomeTaiga
	BiomeMountain
	BiomeSnowland
)

// BiomeNoise комбинирует три карты шума: высоту, влажность и температуру.
type BiomeNoise struct {
	height      *NoiseMap
	moisture    *NoiseMap
	temperature *NoiseMap
}

// NewBiomeNoise создаёт генератор биомов для сида мира.
func NewBiomeNoise(seed int64) *BiomeNoise {
	return &BiomeNoise{
		height:      NewNoiseMap(seed, 0.01),
		moisture:    NewNoiseMap(seed+1, 0.02),
		temperature: NewNoiseMap(seed+2, 0.015),
	}
}

// GetBiomeData возвращает высоту, влажность и температуру точки, все в [0, 1].
func (bn *BiomeNoise) GetBiomeData(x, y float64) (height, moisture, temperature float64) {
	return bn.height.GetNormalized2D(x, y),
		bn.moisture.GetNormalized2D(x, y),
		bn.temperature.GetNormalized2D(x, y)
}

// GetBiomeType классифицирует точку по данным биома.
func GetBiomeType(height, moisture, temperature float64) BiomeType {
	switch {
	case height < 0.35:
		return BiomeOcean
	case height < 0.4:
		return BiomeBeach
	case height > 0.8:
		if temperature < 0.4 {
			return BiomeSnowland
		}
		return BiomeMountain
	case temperature > 0.7 && moisture < 0.3:
		return BiomeDesert
	case temperature < 0.3:
		return BiomeTaiga
	case moisture > 0.55:
		return BiomeForest
	default:
		return BiomePlains
	}
}

// CacheStats возвращает суммарные попадания и промахи кешей шума.
func (bn *BiomeNoise) CacheStats() (hits, misses int) {
	for _, nm := range []*NoiseMap{bn.height, bn.moisture, bn.temperature} {
		h, m := nm.cache.stats()
		hits += h
		misses += m
	}
	return hits, misses
}
