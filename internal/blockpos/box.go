package blockpos

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"math/bits"
	"strings"
)

const (
	// collectPrealloc ограничивает предварительное выделение в Collect.
	collectPrealloc = 1 << 16

	// MaxWalkVolume — предельный объём области для обходов,
	// которые читают или пишут хранилище в каждой точке.
	MaxWalkVolume = int64(1) << 24
)

// ErrBoxTooLarge — объём области превышает допустимый.
var ErrBoxTooLarge = errors.New("объём области превышает лимит")

// Box — включающий параллелепипед, выровненный по осям.
// Углы всегда нормализованы: Min покомпонентно не больше Max.
type Box struct {
	Min Pos
	Max Pos
}

// NewBox строит Box по двум противоположным углам в любом порядке.
func NewBox(a, b Coords) Box {
	return Box{
		Min: Pos{x: min(a.X(), b.X()), y: min(a.Y(), b.Y()), z: min(a.Z(), b.Z())},
		Max: Pos{x: max(a.X(), b.X()), y: max(a.Y(), b.Y()), z: max(a.Z(), b.Z())},
	}
}

// ParseBox разбирает область вида "x1,y1,z1:x2,y2,z2".
func ParseBox(s string) (Box, error) {
	from, to, ok := strings.Cut(s, ":")
	if !ok {
		return Box{}, fmt.Errorf("область %q: ожидался формат x1,y1,z1:x2,y2,z2", s)
	}
	a, err := ParsePos(from)
	if err != nil {
		return Box{}, err
	}
	b, err := ParsePos(to)
	if err != nil {
		return Box{}, err
	}
	return NewBox(a, b), nil
}

func (b Box) String() string {
	return b.Min.ShortString() + ":" + b.Max.ShortString()
}

func (b Box) spans() (sx, sy, sz int64) {
	sx = int64(b.Max.x) - int64(b.Min.x) + 1
	sy = int64(b.Max.y) - int64(b.Min.y) + 1
	sz = int64(b.Max.z) - int64(b.Min.z) + 1
	return
}

// Volume — количество точек решётки внутри Box.
// Если оно не помещается в int64, возвращается math.MaxInt64.
func (b Box) Volume() int64 {
	sx, sy, sz := b.spans()
	return saturatingMul(saturatingMul(sx, sy), sz)
}

// CheckVolume возвращает ErrBoxTooLarge, если в Box больше limit точек.
func (b Box) CheckVolume(limit int64) error {
	if v := b.Volume(); v > limit {
		if v == math.MaxInt64 {
			return fmt.Errorf("%w: %v больше %d точек", ErrBoxTooLarge, b, limit)
		}
		return fmt.Errorf("%w: %v содержит %d точек, лимит %d", ErrBoxTooLarge, b, v, limit)
	}
	return nil
}

// saturatingMul перемножает неотрицательные a и b с насыщением на math.MaxInt64.
func saturatingMul(a, b int64) int64 {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi != 0 || lo > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(lo)
}

// Contains проверяет попадание точки в Box (границы включительно).
func (b Box) Contains(c Coords) bool {
	return c.X() >= b.Min.x && c.X() <= b.Max.x &&
		c.Y() >= b.Min.y && c.Y() <= b.Max.y &&
		c.Z() >= b.Min.z && c.Z() <= b.Max.z
}

// Iterate возвращает новый курсор обхода Box.
func (b Box) Iterate() *BoxCursor {
	sx, sy, sz := b.spans()
	return &BoxCursor{
		minX:  b.Min.x,
		minY:  b.Min.y,
		minZ:  b.Min.z,
		spanX: sx,
		spanY: sy,
		spanZ: sz,
		total: b.Volume(),
	}
}

// IterateLayers обходит Box послойно: Y снаружи, затем Z, X меняется быстрее всех.
// В отличие от Iterate, обход покрывает ровно точки Box при любых пропорциях.
func (b Box) IterateLayers() *BoxCursor {
	c := b.Iterate()
	c.layered = true
	return c
}

// IterateBox обходит все точки параллелепипеда между start и end.
func IterateBox(start, end Coords) *BoxCursor {
	return NewBox(start, end).Iterate()
}

// IterateBounds — вариант IterateBox для заданных числами углов.
func IterateBounds(minX, minY, minZ, maxX, maxY, maxZ int32) *BoxCursor {
	return IterateBox(Pos{x: minX, y: minY, z: minZ}, Pos{x: maxX, y: maxY, z: maxZ})
}

// BoxCursor — ленивый однократный обход параллелепипеда.
//
// Порядок задаётся разложением индекса:
//
//	offsetX = index % spanY
//	rem     = index / spanY
//	offsetZ = rem % spanZ
//	offsetY = rem / spanZ
//	точка   = (minX+offsetX, minY+offsetZ, minZ+offsetY)
//
// Вызывающий код может полагаться на эту последовательность, поэтому
// порядок менять нельзя. Для куба это ровно все точки Box; для остальных
// форм обходится Box того же объёма с переставленными протяжённостями
// (X ← spanY, Y ← spanZ, Z ← spanX), привязанный к минимальному углу.
// Точное послойное покрытие даёт Box.IterateLayers.
//
// Current возвращает один и тот же курсор на каждом шаге.
type BoxCursor struct {
	minX, minY, minZ    int32
	spanX, spanY, spanZ int64
	total               int64
	index               int64
	layered             bool
	cur                 MutablePos
}

// Next переходит к следующей точке; false — обход закончен.
func (c *BoxCursor) Next() bool {
	if c.index >= c.total {
		return false
	}

	if c.layered {
		offsetX := c.index % c.spanX
		rem := c.index / c.spanX
		offsetZ := rem % c.spanZ
		offsetY := rem / c.spanZ
		c.index++

		c.cur.Set(c.minX+int32(offsetX), c.minY+int32(offsetY), c.minZ+int32(offsetZ))
		return true
	}

	offsetX := c.index % c.spanY
	rem := c.index / c.spanY
	offsetZ := rem % c.spanZ
	offsetY := rem / c.spanZ
	c.index++

	c.cur.Set(c.minX+int32(offsetX), c.minY+int32(offsetZ), c.minZ+int32(offsetY))
	return true
}

// Current — текущая точка. Значение перезаписывается следующим Next.
func (c *BoxCursor) Current() *MutablePos {
	return &c.cur
}

// Len — общее число точек обхода.
func (c *BoxCursor) Len() int64 {
	return c.total
}

// Remaining — сколько точек ещё не выдано.
func (c *BoxCursor) Remaining() int64 {
	return c.total - c.index
}

// All отдаёт оставшиеся точки как фиксированные снимки.
func (c *BoxCursor) All() iter.Seq[Pos] {
	return func(yield func(Pos) bool) {
		for c.Next() {
			if !yield(c.cur.Immutable()) {
				return
			}
		}
	}
}

// Collect дочитывает курсор в срез фиксированных позиций.
func (c *BoxCursor) Collect() []Pos {
	out := make([]Pos, 0, min(c.Remaining(), collectPrealloc))
	for c.Next() {
		out = append(out, c.cur.Immutable())
	}
	return out
}
