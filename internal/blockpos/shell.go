package blockpos

import "iter"

// ShellCursor обходит окрестность центра «оболочками» по манхэттенскому
// расстоянию m = |dx|+|dy|+|dz|.
//
// Порядок обхода:
//   - m растёт от 0 до xRange;
//   - при фиксированном m: dx от -min(yRange, m) до +min(yRange, m);
//   - при фиксированных (m, dx): dy от -min(zRange, m-|dx|) до +min(zRange, m-|dx|);
//   - dz = m-|dx|-|dy|; при dz == 0 выдаётся одна точка, иначе две подряд:
//     сначала +dz, затем -dz. Точки с dz > zRange пропускаются.
//
// На этот порядок опирается FindClosest («первое совпадение — ближайшее»),
// поэтому менять его нельзя. Current возвращает один и тот же курсор.
type ShellCursor struct {
	cx, cy, cz             int32
	xRange, yRange, zRange int

	m      int
	limitX int
	limitY int
	dx, dy int

	pendingNegZ bool
	done        bool
	cur         MutablePos
}

// IterateOutwards создаёт курсор обхода вокруг center.
// Отрицательный радиус даёт пустую последовательность.
func IterateOutwards(center Coords, xRange, yRange, zRange int) *ShellCursor {
	return &ShellCursor{
		cx:     center.X(),
		cy:     center.Y(),
		cz:     center.Z(),
		xRange: xRange,
		yRange: yRange,
		zRange: zRange,
		done:   xRange < 0 || yRange < 0 || zRange < 0,
	}
}

// Next переходит к следующей точке; после исчерпания всегда false.
func (c *ShellCursor) Next() bool {
	if c.done {
		return false
	}

	// Зеркальная точка по Z для той же пары (dx, dy).
	if c.pendingNegZ {
		c.pendingNegZ = false
		c.cur.SetZ(c.cz - (c.cur.Z() - c.cz))
		return true
	}

	for {
		if c.dy > c.limitY {
			c.dx++
			if c.dx > c.limitX {
				c.m++
				if c.m > c.xRange {
					c.done = true
					return false
				}
				c.limitX = min(c.yRange, c.m)
				c.dx = -c.limitX
			}
			c.limitY = min(c.zRange, c.m-absInt(c.dx))
			c.dy = -c.limitY
		}

		dx, dy := c.dx, c.dy
		dz := c.m - absInt(dx) - absInt(dy)
		c.dy++

		if dz <= c.zRange {
			c.pendingNegZ = dz != 0
			c.cur.Set(c.cx+int32(dx), c.cy+int32(dy), c.cz+int32(dz))
			return true
		}
	}
}

// Current — текущая точка. Значение перезаписывается следующим Next.
func (c *ShellCursor) Current() *MutablePos {
	return &c.cur
}

// All отдаёт оставшиеся точки как фиксированные снимки.
func (c *ShellCursor) All() iter.Seq[Pos] {
	return func(yield func(Pos) bool) {
		for c.Next() {
			if !yield(c.cur.Immutable()) {
				return
			}
		}
	}
}

// Collect дочитывает курсор в срез фиксированных позиций.
func (c *ShellCursor) Collect() []Pos {
	var out []Pos
	for c.Next() {
		out = append(out, c.cur.Immutable())
	}
	return out
}

// FindClosest возвращает первую в порядке IterateOutwards точку,
// для которой match вернул true. Обход прерывается на первом совпадении.
// match получает курсор: сохранять его нельзя, только читать.
func FindClosest(center Coords, xRange, yRange, zRange int, match func(Coords) bool) (Pos, bool) {
	it := IterateOutwards(center, xRange, yRange, zRange)
	for it.Next() {
		if match(it.Current()) {
			return it.Current().Immutable(), true
		}
	}
	return Pos{}, false
}

// FindClosestHV — FindClosest с одинаковым горизонтальным радиусом
// по X и Z и отдельным вертикальным радиусом.
func FindClosestHV(center Coords, horizontal, vertical int, match func(Coords) bool) (Pos, bool) {
	return FindClosest(center, horizontal, vertical, horizontal, match)
}
