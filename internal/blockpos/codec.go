package blockpos

// MaxCoordinate — максимальный модуль координаты по осям X и Z,
// из которого выводится раскладка битовых полей упакованного слова.
const MaxCoordinate = 30_000_000

// Раскладка 64-битного слова, от старших битов к младшим: X (26) | Z (26) | Y (12).
//
// SizeBitsX = 1 + log2(smallestEncompassingPowerOfTwo(MaxCoordinate)).
// Go не умеет вычислять функции в константах, поэтому значение записано
// явно, а формула проверяется в codec_test.go.
const (
	SizeBitsX = 1 + 25
	SizeBitsZ = SizeBitsX
	SizeBitsY = 64 - SizeBitsX - SizeBitsZ

	BitsX = int64(1)<<SizeBitsX - 1
	BitsY = int64(1)<<SizeBitsY - 1
	BitsZ = int64(1)<<SizeBitsZ - 1

	BitShiftZ = SizeBitsY
	BitShiftX = SizeBitsY + SizeBitsZ
)

// Допустимые (без заворачивания) диапазоны осей.
const (
	MinX = -(1 << (SizeBitsX - 1))
	MaxX = 1<<(SizeBitsX-1) - 1
	MinY = -(1 << (SizeBitsY - 1))
	MaxY = 1<<(SizeBitsY-1) - 1
	MinZ = -(1 << (SizeBitsZ - 1))
	MaxZ = 1<<(SizeBitsZ-1) - 1
)

// Pack упаковывает три оси в одно 64-битное слово.
// Каждая ось обрезается маской до ширины своего поля: значения вне
// диапазона заворачиваются по модулю 2^width, ошибки нет.
func Pack(x, y, z int32) int64 {
	return pack(int64(x), int64(y), int64(z))
}

func pack(x, y, z int64) int64 {
	var l int64
	l |= (x & BitsX) << BitShiftX
	l |= (y & BitsY) << 0
	l |= (z & BitsZ) << BitShiftZ
	return l
}

// UnpackX извлекает X со знаковым расширением.
func UnpackX(word int64) int32 {
	return int32(word << (64 - BitShiftX - SizeBitsX) >> (64 - SizeBitsX))
}

// UnpackY извлекает Y со знаковым расширением.
func UnpackY(word int64) int32 {
	return int32(word << (64 - SizeBitsY) >> (64 - SizeBitsY))
}

// UnpackZ извлекает Z со знаковым расширением.
func UnpackZ(word int64) int32 {
	return int32(word << (64 - BitShiftZ - SizeBitsZ) >> (64 - SizeBitsZ))
}

// Offset сдвигает упакованную позицию на (dx, dy, dz).
// Сумма считается в int64, переполнение поля заворачивается при упаковке.
func Offset(word int64, dx, dy, dz int32) int64 {
	return pack(
		int64(UnpackX(word))+int64(dx),
		int64(UnpackY(word))+int64(dy),
		int64(UnpackZ(word))+int64(dz),
	)
}

// RoundDownTo16 округляет вертикальную координату вниз до границы секции (16).
func RoundDownTo16(y int64) int64 {
	return y &^ 15
}

// Representable сообщает, помещается ли позиция в поля без заворачивания,
// то есть будет ли Pack обратим для неё.
func Representable(c Coords) bool {
	x, y, z := c.X(), c.Y(), c.Z()
	return x >= MinX && x <= MaxX &&
		y >= MinY && y <= MaxY &&
		z >= MinZ && z <= MaxZ
}
