package client

import (
	"fmt"
	"math"

	termbox "github.com/nsf/termbox-go"

	"github.com/annelo/go-voxel-engine/internal/chunk"
	"github.com/annelo/go-voxel-engine/internal/config"
	"github.com/annelo/go-voxel-engine/internal/entity"
	"github.com/annelo/go-voxel-engine/internal/world"
)

// Символы блоков для текстового отображения
var blockSymbols = map[chunk.BlockID]rune{
	chunk.BlockAir:       ' ', // Пустота
	chunk.BlockGrass:     '_', // Трава
	chunk.BlockDirt:      '.', // Земля
	chunk.BlockStone:     '#', // Камень
	chunk.BlockWater:     '~', // Вода
	chunk.BlockSand:      ',', // Песок
	chunk.BlockWood:      '|', // Дерево
	chunk.BlockLeaves:    '@', // Листва
	chunk.BlockSnow:      '*', // Снег
	chunk.BlockTallGrass: '"', // Высокая трава
	chunk.BlockFlower:    'f', // Цветок
}

// Цвета блоков
var blockColors = map[chunk.BlockID]termbox.Attribute{
	chunk.BlockAir:       termbox.ColorDefault,
	chunk.BlockGrass:     termbox.ColorGreen,
	chunk.BlockDirt:      termbox.ColorYellow,
	chunk.BlockStone:     termbox.ColorWhite,
	chunk.BlockWater:     termbox.ColorBlue,
	chunk.BlockSand:      termbox.ColorYellow,
	chunk.BlockWood:      termbox.ColorRed,
	chunk.BlockLeaves:    termbox.ColorGreen,
	chunk.BlockSnow:      termbox.ColorWhite,
	chunk.BlockTallGrass: termbox.ColorGreen,
	chunk.BlockFlower:    termbox.ColorMagenta,
}

// Цвета фона блоков
var blockBackgroundColors = map[chunk.BlockID]termbox.Attribute{
	chunk.BlockAir:       termbox.ColorDefault,
	chunk.BlockGrass:     termbox.ColorBlack,
	chunk.BlockDirt:      termbox.ColorBlack,
	chunk.BlockStone:     termbox.ColorDarkGray,
	chunk.BlockWater:     termbox.ColorBlack,
	chunk.BlockSand:      termbox.ColorBlack,
	chunk.BlockWood:      termbox.ColorBlack,
	chunk.BlockLeaves:    termbox.ColorBlack,
	chunk.BlockSnow:      termbox.ColorBlue,
	chunk.BlockFlower:    termbox.ColorBlack,
	chunk.BlockTallGrass: termbox.ColorBlack,
}

// Сколько блоков вверх и вниз от игрока просматривается при поиске
// поверхности в виде сверху.
const (
	surfaceScanUp   = 2
	surfaceScanDown = 8
)

// TermboxRenderer — текстовый рендерер: вид сверху, инфо-панель и лента
// сообщений. Ввод с клавиатуры принимает отдельная горутина и передаёт
// его кадру через канал событий.
type TermboxRenderer struct {
	events chan termbox.Event
	done   chan struct{}
}

func NewTermboxRenderer() *TermboxRenderer {
	return &TermboxRenderer{
		events: make(chan termbox.Event, 64),
		done:   make(chan struct{}),
	}
}

func (r *TermboxRenderer) Init(config.ClientOptions) error {
	if err := termbox.Init(); err != nil {
		return fmt.Errorf("не удалось инициализировать терминал: %w", err)
	}
	termbox.SetInputMode(termbox.InputEsc)
	go r.pollInput()
	return nil
}

func (r *TermboxRenderer) Close() {
	close(r.done)
	termbox.Interrupt()
	termbox.Close()
}

func (r *TermboxRenderer) pollInput() {
	for {
		ev := termbox.PollEvent()
		select {
		case <-r.done:
			return
		case r.events <- ev:
		default:
			// Кадр не успевает за вводом — событие отбрасывается
		}
	}
}

// Frame рисует текущее состояние и возвращает накопленный ввод.
func (r *TermboxRenderer) Frame(w *world.World, self *entity.Entity, messages []string) Input {
	in := r.collectInput()
	r.draw(w, self, messages)
	return in
}

func (r *TermboxRenderer) collectInput() Input {
	var in Input
	for {
		select {
		case ev := <-r.events:
			if ev.Type != termbox.EventKey {
				continue
			}
			switch ev.Key {
			case termbox.KeyEsc, termbox.KeyCtrlC:
				in.Quit = true
			case termbox.KeyArrowUp:
				in.Move.Z -= 1
			case termbox.KeyArrowDown:
				in.Move.Z += 1
			case termbox.KeyArrowLeft:
				in.Move.X -= 1
			case termbox.KeyArrowRight:
				in.Move.X += 1
			case termbox.KeySpace:
				in.Place = true
			case termbox.KeyDelete, termbox.KeyBackspace, termbox.KeyBackspace2:
				in.Break = true
			}
			switch ev.Ch {
			case 'w':
				in.Move.Z -= 1
			case 's':
				in.Move.Z += 1
			case 'a':
				in.Move.X -= 1
			case 'd':
				in.Move.X += 1
			case 'q':
				in.Quit = true
			}
		default:
			return in
		}
	}
}

func (r *TermboxRenderer) draw(w *world.World, self *entity.Entity, messages []string) {
	termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)
	width, height := termbox.Size()

	// Верхняя информационная панель
	infoY := 0
	playerInfo := fmt.Sprintf("Игрок: %s | X: %.1f | Y: %.1f | Z: %.1f | Секций: %d",
		self.Name, self.Position.X, self.Position.Y, self.Position.Z, w.SectionCount())
	drawText(0, infoY, width, playerInfo, termbox.ColorWhite, termbox.ColorDefault)
	infoY++

	// Граница между инфо-панелью и игровым миром
	for x := 0; x < width; x++ {
		termbox.SetCell(x, infoY, '-', termbox.ColorWhite, termbox.ColorDefault)
	}
	infoY++

	startY := infoY
	viewHeight := height - startY - 6 // Оставляем место для сообщений внизу
	viewWidth := width

	centerX := int32(math.Floor(float64(self.Position.X)))
	centerZ := int32(math.Floor(float64(self.Position.Z)))
	eyeY := int32(math.Floor(float64(self.Position.Y)))

	// Координаты других игроков в плоскости обзора
	remote := make(map[[2]int32]struct{})
	w.Entities.ForEach(func(e *entity.Entity) {
		if e.ID == self.ID {
			return
		}
		key := [2]int32{
			int32(math.Floor(float64(e.Position.X))),
			int32(math.Floor(float64(e.Position.Z))),
		}
		remote[key] = struct{}{}
	})

	// Вид сверху: для каждой клетки ищем верхний непустой блок вблизи
	// высоты игрока
	for sy := 0; sy < viewHeight; sy++ {
		for sx := 0; sx < viewWidth; sx++ {
			wx := centerX - int32(viewWidth)/2 + int32(sx)
			wz := centerZ - int32(viewHeight)/2 + int32(sy)

			block := surfaceBlock(w, wx, eyeY, wz)
			symbol := blockSymbols[block]
			fgColor := blockColors[block]
			bgColor := blockBackgroundColors[block]

			if wx == centerX && wz == centerZ {
				symbol = '@' // Символ игрока
				fgColor = termbox.ColorRed
				bgColor = termbox.ColorDarkGray
			} else if _, ok := remote[[2]int32{wx, wz}]; ok {
				symbol = 'P' // Другой игрок
				fgColor = termbox.ColorYellow
				bgColor = termbox.ColorDarkGray
			}

			termbox.SetCell(sx, sy+startY, symbol, fgColor, bgColor)
		}
	}

	// Сообщения внизу экрана
	msgY := height - 6
	drawText(0, msgY, width, "----- Сообщения -----", termbox.ColorWhite, termbox.ColorDefault)
	msgY++
	for i, msg := range messages {
		if i >= 4 {
			break
		}
		drawText(0, msgY+i, width, msg, termbox.ColorCyan, termbox.ColorDefault)
	}

	drawText(0, height-1, width,
		"Стрелки/WASD — движение | Пробел — поставить блок | Delete — разрушить | Q/Esc — выход",
		termbox.ColorWhite, termbox.ColorDefault)

	termbox.Flush()
}

// surfaceBlock возвращает верхний непустой блок колонки в окне
// [eyeY-surfaceScanDown, eyeY+surfaceScanUp].
func surfaceBlock(w *world.World, wx, eyeY, wz int32) chunk.BlockID {
	for y := eyeY + surfaceScanUp; y >= eyeY-surfaceScanDown; y-- {
		if b := w.GetBlock(wx, y, wz); b != chunk.BlockAir {
			return b
		}
	}
	return chunk.BlockAir
}

// drawText выводит строку, обрезая её по ширине экрана
func drawText(x, y, maxWidth int, text string, fg, bg termbox.Attribute) {
	for i, ch := range []rune(text) {
		if x+i >= maxWidth {
			break
		}
		termbox.SetCell(x+i, y, ch, fg, bg)
	}
}
