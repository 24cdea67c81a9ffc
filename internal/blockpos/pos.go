package blockpos

import (
	"fmt"
	"strconv"
	"strings"
)

// Coords — общий read-only доступ к координатам блока.
// Его реализуют и неизменяемая Pos, и курсор MutablePos.
type Coords interface {
	X() int32
	Y() int32
	Z() int32
}

// Pos — неизменяемая позиция блока в целочисленной решётке.
// Значение сравнимо и безопасно как ключ map или для долгого хранения.
type Pos struct {
	x, y, z int32
}

// Origin — позиция (0, 0, 0).
var Origin = Pos{}

// NewPos создаёт позицию.
func NewPos(x, y, z int32) Pos {
	return Pos{x: x, y: y, z: z}
}

// FromPacked распаковывает слово в позицию.
func FromPacked(word int64) Pos {
	return Pos{x: UnpackX(word), y: UnpackY(word), z: UnpackZ(word)}
}

// Immutable делает фиксированный снимок любых координат.
func Immutable(c Coords) Pos {
	if p, ok := c.(Pos); ok {
		return p
	}
	return Pos{x: c.X(), y: c.Y(), z: c.Z()}
}

func (p Pos) X() int32 { return p.x }
func (p Pos) Y() int32 { return p.y }
func (p Pos) Z() int32 { return p.z }

// Pack упаковывает позицию в 64-битное слово.
func (p Pos) Pack() int64 {
	return Pack(p.x, p.y, p.z)
}

// Add возвращает позицию, смещённую на (dx, dy, dz).
func (p Pos) Add(dx, dy, dz int32) Pos {
	if dx == 0 && dy == 0 && dz == 0 {
		return p
	}
	return Pos{x: p.x + dx, y: p.y + dy, z: p.z + dz}
}

// Sub возвращает разность позиций.
func (p Pos) Sub(o Coords) Pos {
	return p.Add(-o.X(), -o.Y(), -o.Z())
}

func (p Pos) Up(n int32) Pos   { return p.Add(0, n, 0) }
func (p Pos) Down(n int32) Pos { return p.Add(0, -n, 0) }

// Mutable возвращает независимый курсор с теми же координатами.
func (p Pos) Mutable() *MutablePos {
	return &MutablePos{x: p.x, y: p.y, z: p.z}
}

// Compare упорядочивает позиции сначала по Y, затем по Z, затем по X.
func (p Pos) Compare(o Pos) int {
	switch {
	case p.y != o.y:
		return cmpInt32(p.y, o.y)
	case p.z != o.z:
		return cmpInt32(p.z, o.z)
	default:
		return cmpInt32(p.x, o.x)
	}
}

func cmpInt32(a, b int32) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func (p Pos) String() string {
	return fmt.Sprintf("(%d, %d, %d)", p.x, p.y, p.z)
}

// ShortString возвращает "x, y, z"; ParsePos разбирает этот формат обратно.
func (p Pos) ShortString() string {
	return fmt.Sprintf("%d, %d, %d", p.x, p.y, p.z)
}

// ParsePos разбирает строку вида "x,y,z" (пробелы вокруг чисел допускаются).
func ParsePos(s string) (Pos, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Pos{}, fmt.Errorf("позиция %q: ожидалось 3 координаты, получено %d", s, len(parts))
	}

	var v [3]int32
	for i, part := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 32)
		if err != nil {
			return Pos{}, fmt.Errorf("позиция %q: координата %d: %w", s, i, err)
		}
		v[i] = int32(n)
	}
	return Pos{x: v[0], y: v[1], z: v[2]}, nil
}

// ManhattanDistance возвращает |dx|+|dy|+|dz| между двумя позициями.
func ManhattanDistance(a, b Coords) int {
	return absInt(int(a.X())-int(b.X())) +
		absInt(int(a.Y())-int(b.Y())) +
		absInt(int(a.Z())-int(b.Z()))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// MutablePos — курсор: итераторы переписывают его на месте.
// Чтобы сохранить значение дольше одного шага, вызовите Immutable.
type MutablePos struct {
	x, y, z int32
}

func (m *MutablePos) X() int32 { return m.x }
func (m *MutablePos) Y() int32 { return m.y }
func (m *MutablePos) Z() int32 { return m.z }

// Set устанавливает все три координаты.
func (m *MutablePos) Set(x, y, z int32) *MutablePos {
	m.x, m.y, m.z = x, y, z
	return m
}

func (m *MutablePos) SetX(x int32) { m.x = x }
func (m *MutablePos) SetY(y int32) { m.y = y }
func (m *MutablePos) SetZ(z int32) { m.z = z }

// SetPacked распаковывает слово в курсор.
func (m *MutablePos) SetPacked(word int64) *MutablePos {
	return m.Set(UnpackX(word), UnpackY(word), UnpackZ(word))
}

// SetOffset ставит курсор в base + (dx, dy, dz).
func (m *MutablePos) SetOffset(base Coords, dx, dy, dz int32) *MutablePos {
	return m.Set(base.X()+dx, base.Y()+dy, base.Z()+dz)
}

// Move сдвигает курсор на (dx, dy, dz).
func (m *MutablePos) Move(dx, dy, dz int32) *MutablePos {
	return m.Set(m.x+dx, m.y+dy, m.z+dz)
}

// Immutable возвращает фиксированный снимок текущего значения курсора.
func (m *MutablePos) Immutable() Pos {
	return Pos{x: m.x, y: m.y, z: m.z}
}

func (m *MutablePos) String() string {
	return m.Immutable().String()
}
