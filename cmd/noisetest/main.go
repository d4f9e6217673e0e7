package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/annelo/go-voxel-engine/internal/worldgen"
)

const (
	width  = 40
	height = 20
)

var seedFlag = flag.Int64("seed", 0, "Сид генерации (0 = случайный)")

func main() {
	flag.Parse()

	seed := *seedFlag
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	fmt.Printf("Seed: %d\n", seed)

	noise := worldgen.NewBiomeNoise(seed)

	fmt.Println("\nКарта высот:")
	visualizeHeightMap(noise)

	fmt.Println("\nКарта биомов:")
	visualizeBiomeMap(noise)

	fmt.Println("\nПрофиль поверхности (срез z=0):")
	visualizeSurface(seed)
}

// visualizeHeightMap визуализирует карту высот шума Перлина
func visualizeHeightMap(noise *worldgen.BiomeNoise) {
	// Символы для различных высот от низкой к высокой
	chars := []rune{'~', '.', '-', '=', '#', '^', '*', '@'}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			h, _, _ := noise.GetBiomeData(float64(x)*5, float64(y)*5)

			idx := int(h * float64(len(chars)-1))
			if idx >= len(chars) {
				idx = len(chars) - 1
			}
			fmt.Print(string(chars[idx]))
		}
		fmt.Println()
	}
}

// visualizeBiomeMap визуализирует карту биомов
func visualizeBiomeMap(noise *worldgen.BiomeNoise) {
	biomeChars := map[worldgen.BiomeType]rune{
		worldgen.BiomeOcean:    '~',
		worldgen.BiomeBeach:    ',',
		worldgen.BiomeDesert:   '.',
		worldgen.BiomePlains:   '_',
		worldgen.BiomeForest:   'f',
		worldgen.BiomeTaiga:    't',
		worldgen.BiomeMountain: '^',
		worldgen.BiomeSnowland: '*',
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			h, moisture, temperature := noise.GetBiomeData(float64(x)*5, float64(y)*5)
			biome := worldgen.GetBiomeType(h, moisture, temperature)
			fmt.Print(string(biomeChars[biome]))
		}
		fmt.Println()
	}
}

// visualizeSurface печатает высоту поверхности вдоль оси X так, как её
// увидит генератор секций.
func visualizeSurface(seed int64) {
	gen := worldgen.NewGenerator(seed, 4)
	for x := int32(0); x < width; x++ {
		fmt.Printf("%3d", gen.SurfaceHeight(x*4, 0))
	}
	fmt.Println()
}
