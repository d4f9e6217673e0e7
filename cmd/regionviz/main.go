package main

import (
	"flag"
	"fmt"
	"log"

	termbox "github.com/nsf/termbox-go"

	"github.com/annelo/go-voxel-engine/internal/chunk"
	"github.com/annelo/go-voxel-engine/internal/storage"
)

var (
	worldPath = flag.String("path", "./world/regions", "Путь до директории с region-файлами")
	regionX   = flag.Int("x", 0, "Координата региона X")
	regionY   = flag.Int("y", 0, "Координата региона Y")
	regionZ   = flag.Int("z", 0, "Координата региона Z")
	zoom      = flag.Int("zoom", 1, "Коэффициент масштабирования блока -> символов (1-4)")
	layer     = flag.Int("layer", 20, "Мировая координата Y просматриваемого среза")
)

func main() {
	flag.Parse()

	region := chunk.Position{X: int32(*regionX), Y: int32(*regionY), Z: int32(*regionZ)}
	rf, err := storage.NewRegionFile(*worldPath, region)
	if err != nil {
		log.Fatalf("cannot open region file: %v", err)
	}
	defer rf.Close()

	if err := termbox.Init(); err != nil {
		log.Fatalf("termbox init error: %v", err)
	}
	defer termbox.Close()

	// Кеш секций в памяти; nil означает «в файле нет»
	cache := make(map[chunk.Position]*chunk.Section)

	// Камера стоит в углу региона, срез задаётся флагом
	camX := region.X * storage.RegionSize * chunk.Size
	camZ := region.Z * storage.RegionSize * chunk.Size
	sliceY := int32(*layer)
	curX, curY := 0, 0

	draw := func() {
		termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)

		width, height := termbox.Size()
		s := *zoom

		for py := 2; py < height; py += s {
			for px := 0; px < width; px += s {
				wx := camX + int32(px/s)
				wz := camZ + int32((py-2)/s)

				bt := blockAt(rf, cache, wx, sliceY, wz)
				ch, fg, bg := blockSymbol(bt)

				for dy := 0; dy < s && py+dy < height; dy++ {
					for dx := 0; dx < s && px+dx < width; dx++ {
						termbox.SetCell(px+dx, py+dy, ch, fg, bg)
					}
				}
			}
		}

		// Выделяем курсор (инвертируем цвета)
		if curX < width && curY+2 < height {
			cell := termbox.CellBuffer()[(curY+2)*width+curX]
			termbox.SetCell(curX, curY+2, cell.Ch, cell.Bg|termbox.AttrBold, cell.Fg)
		}

		header := fmt.Sprintf("Region (%d,%d,%d)  Cam=(%d,%d)  Y=%d  Zoom=%dx  Секций в файле: %d",
			region.X, region.Y, region.Z, camX, camZ, sliceY, *zoom, len(rf.Sections()))
		for i, r := range header {
			termbox.SetCell(i, 0, r, termbox.ColorYellow|termbox.AttrBold, termbox.ColorBlack)
		}

		// Информация о блоке под курсором
		wx := camX + int32(curX/s)
		wz := camZ + int32(curY/s)
		bt := blockAt(rf, cache, wx, sliceY, wz)
		sec := chunk.WorldToChunk(wx, sliceY, wz)
		_, stored := cache[sec]
		info := fmt.Sprintf("Block (%d,%d,%d) Type=%d Section=%v Stored=%v",
			wx, sliceY, wz, bt, sec, stored && cache[sec] != nil)
		for i, r := range info {
			if i >= width {
				break
			}
			termbox.SetCell(i, 1, r, termbox.ColorWhite, termbox.ColorBlack)
		}

		termbox.Flush()
	}

	draw()

	for {
		switch ev := termbox.PollEvent(); ev.Type {
		case termbox.EventKey:
			switch ev.Key {
			case termbox.KeyEsc, termbox.KeyCtrlC:
				return
			case termbox.KeyArrowLeft:
				camX--
			case termbox.KeyArrowRight:
				camX++
			case termbox.KeyArrowUp:
				camZ--
			case termbox.KeyArrowDown:
				camZ++
			case termbox.KeyPgup:
				sliceY++
			case termbox.KeyPgdn:
				sliceY--
			default:
				if ev.Ch == 'q' {
					return
				}
				if ev.Ch == '+' && *zoom < 4 {
					*zoom++
				}
				if ev.Ch == '-' && *zoom > 1 {
					*zoom--
				}
				// WASD для курсора
				width, height := termbox.Size()
				s := *zoom
				if ev.Ch == 'a' && curX > 0 {
					curX -= s
				}
				if ev.Ch == 'd' && curX < width-s {
					curX += s
				}
				if ev.Ch == 'w' && curY > 0 {
					curY -= s
				}
				if ev.Ch == 's' && curY < height-2-s {
					curY += s
				}
			}
			draw()
		case termbox.EventError:
			log.Printf("termbox error: %v", ev.Err)
			return
		case termbox.EventResize:
			draw()
		}
	}
}

// Возвращает символ и цвета для типа блока
func blockSymbol(bt chunk.BlockID) (rune, termbox.Attribute, termbox.Attribute) {
	switch bt {
	case chunk.BlockGrass:
		return '_', termbox.ColorGreen, termbox.ColorBlack
	case chunk.BlockDirt:
		return '.', termbox.ColorYellow, termbox.ColorBlack
	case chunk.BlockStone:
		return '#', termbox.ColorWhite, termbox.ColorBlack
	case chunk.BlockWater:
		return '~', termbox.ColorBlue, termbox.ColorBlack
	case chunk.BlockSand:
		return ',', termbox.ColorYellow, termbox.ColorBlack
	case chunk.BlockWood:
		return '|', termbox.ColorRed, termbox.ColorBlack
	case chunk.BlockLeaves:
		return '@', termbox.ColorGreen, termbox.ColorBlack
	case chunk.BlockSnow:
		return '*', termbox.ColorWhite, termbox.ColorBlue
	case chunk.BlockTallGrass:
		return '"', termbox.ColorGreen, termbox.ColorBlack
	case chunk.BlockFlower:
		return 'f', termbox.ColorMagenta, termbox.ColorBlack
	default:
		return ' ', termbox.ColorDefault, termbox.ColorDefault
	}
}

// blockAt читает блок в мировых координатах из файла региона,
// кешируя загруженные секции.
func blockAt(rf *storage.RegionFile, cache map[chunk.Position]*chunk.Section,
	wx, wy, wz int32) chunk.BlockID {

	pos := chunk.WorldToChunk(wx, wy, wz)
	s, ok := cache[pos]
	if !ok {
		loaded, err := rf.GetSection(pos)
		if err != nil {
			// Нет данных о секции либо она из другого региона
			cache[pos] = nil
			return chunk.BlockAir
		}
		s = loaded
		cache[pos] = s
	}
	if s == nil {
		return chunk.BlockAir
	}

	lx, ly, lz := chunk.WorldToLocal(wx, wy, wz)
	return s.GetBlock(lx, ly, lz)
}
