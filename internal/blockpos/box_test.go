package blockpos

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIterateBoxUnitCube(t *testing.T) {
	points := IterateBox(NewPos(0, 0, 0), NewPos(1, 1, 1)).Collect()

	expected := []Pos{
		NewPos(0, 0, 0),
		NewPos(1, 0, 0),
		NewPos(0, 1, 0),
		NewPos(1, 1, 0),
		NewPos(0, 0, 1),
		NewPos(1, 0, 1),
		NewPos(0, 1, 1),
		NewPos(1, 1, 1),
	}
	require.Equal(t, expected, points, "порядок обхода фиксирован")
	assert.Equal(t, NewPos(0, 0, 0), points[0])
	assert.Equal(t, NewPos(1, 1, 1), points[len(points)-1])
}

func TestIterateBoxSinglePoint(t *testing.T) {
	it := IterateBox(NewPos(5, 5, 5), NewPos(5, 5, 5))

	require.True(t, it.Next())
	assert.Equal(t, NewPos(5, 5, 5), it.Current().Immutable())
	assert.False(t, it.Next())
	assert.False(t, it.Next(), "исчерпанный курсор остаётся исчерпанным")
}

func TestIterateBoxNormalizesCorners(t *testing.T) {
	a := NewPos(3, -1, 2)
	b := NewPos(1, 1, 0)

	forward := IterateBox(a, b).Collect()
	backward := IterateBox(b, a).Collect()
	bounds := IterateBounds(1, -1, 0, 3, 1, 2).Collect()

	assert.Equal(t, forward, backward)
	assert.Equal(t, forward, bounds)
	assert.Equal(t, NewPos(1, -1, 0), forward[0])
}

func TestIterateBoxCubeCoverage(t *testing.T) {
	box := NewBox(NewPos(-1, -1, -1), NewPos(1, 1, 1))
	seen := make(map[Pos]int)

	it := box.Iterate()
	for it.Next() {
		seen[it.Current().Immutable()]++
	}

	assert.Len(t, seen, 27)
	for p, n := range seen {
		assert.Equal(t, 1, n, "точка %v выдана %d раз", p, n)
		assert.True(t, box.Contains(p), "точка %v вне box", p)
	}
}

func TestIterateBoxNonCubeOrder(t *testing.T) {
	// разложение индекса идёт по spanY, spanZ: протяжённости переставлены
	points := IterateBox(NewPos(0, 0, 0), NewPos(2, 1, 0)).Collect()
	expected := []Pos{
		NewPos(0, 0, 0),
		NewPos(1, 0, 0),
		NewPos(0, 0, 1),
		NewPos(1, 0, 1),
		NewPos(0, 0, 2),
		NewPos(1, 0, 2),
	}
	assert.Equal(t, expected, points)
}

func TestIterateLayers(t *testing.T) {
	box := NewBox(NewPos(0, 0, 0), NewPos(2, 1, 0))
	points := box.IterateLayers().Collect()
	expected := []Pos{
		NewPos(0, 0, 0),
		NewPos(1, 0, 0),
		NewPos(2, 0, 0),
		NewPos(0, 1, 0),
		NewPos(1, 1, 0),
		NewPos(2, 1, 0),
	}
	assert.Equal(t, expected, points)

	box = NewBox(NewPos(-3, 10, 4), NewPos(1, 12, 5))
	seen := make(map[Pos]bool)
	it := box.IterateLayers()
	for it.Next() {
		p := it.Current().Immutable()
		assert.True(t, box.Contains(p), "точка %v вне box", p)
		assert.False(t, seen[p], "повтор %v", p)
		seen[p] = true
	}
	assert.Len(t, seen, int(box.Volume()))

	// для куба оба обхода покрывают одно и то же множество
	cube := NewBox(NewPos(0, 0, 0), NewPos(2, 2, 2))
	assert.ElementsMatch(t, cube.Iterate().Collect(), cube.IterateLayers().Collect())
}

func TestIterateBoxCount(t *testing.T) {
	cases := []struct {
		a, b Pos
		want int64
	}{
		{NewPos(0, 0, 0), NewPos(0, 0, 0), 1},
		{NewPos(0, 0, 0), NewPos(3, 0, 0), 4},
		{NewPos(0, 0, 0), NewPos(1, 2, 3), 24},
		{NewPos(10, -5, 7), NewPos(-10, 5, -7), 21 * 11 * 15},
	}

	for _, tc := range cases {
		it := IterateBox(tc.a, tc.b)
		assert.Equal(t, tc.want, it.Len())

		var n int64
		for it.Next() {
			n++
		}
		assert.Equal(t, tc.want, n, "box %v..%v", tc.a, tc.b)
		assert.Equal(t, int64(0), it.Remaining())
	}
}

func TestBoxCursorReusesStorage(t *testing.T) {
	it := IterateBox(NewPos(0, 0, 0), NewPos(1, 0, 0))

	require.True(t, it.Next())
	first := it.Current()
	snapshot := first.Immutable()

	require.True(t, it.Next())
	assert.Same(t, first, it.Current(), "курсор переиспользуется")
	assert.NotEqual(t, snapshot, first.Immutable(), "курсор перезаписан следующим шагом")
	assert.Equal(t, NewPos(0, 0, 0), snapshot, "снимок не изменился")
}

func TestBoxCursorAllStopsEarly(t *testing.T) {
	it := IterateBox(NewPos(0, 0, 0), NewPos(2, 2, 2))

	var got []Pos
	for p := range it.All() {
		got = append(got, p)
		if len(got) == 3 {
			break
		}
	}

	assert.Len(t, got, 3)
	assert.Equal(t, int64(24), it.Remaining())
}

func TestBox(t *testing.T) {
	b := NewBox(NewPos(2, 5, -1), NewPos(-2, 0, 1))

	assert.Equal(t, NewPos(-2, 0, -1), b.Min)
	assert.Equal(t, NewPos(2, 5, 1), b.Max)
	assert.Equal(t, int64(5*6*3), b.Volume())
	assert.True(t, b.Contains(NewPos(0, 3, 0)))
	assert.True(t, b.Contains(b.Max))
	assert.False(t, b.Contains(NewPos(3, 3, 0)))
}

func TestBoxVolumeSaturates(t *testing.T) {
	full := NewBox(NewPos(MinX, MinY, MinZ), NewPos(MaxX, MaxY, MaxZ))
	assert.Equal(t, int64(math.MaxInt64), full.Volume(), "2^64 точек")

	half := NewBox(NewPos(MinX, 0, MinZ), NewPos(MaxX, MaxY, MaxZ))
	assert.Equal(t, int64(math.MaxInt64), half.Volume(), "2^63 точек")

	wide := NewBox(NewPos(math.MinInt32, math.MinInt32, math.MinInt32), NewPos(math.MaxInt32, math.MaxInt32, math.MaxInt32))
	assert.Equal(t, int64(math.MaxInt64), wide.Volume())

	fits := NewBox(NewPos(MinX, 0, 0), NewPos(MaxX, MaxY, 0))
	assert.Equal(t, int64(1)<<(SizeBitsX+SizeBitsY-1), fits.Volume())
}

func TestBoxCheckVolume(t *testing.T) {
	small := NewBox(NewPos(0, 0, 0), NewPos(3, 3, 3))
	assert.NoError(t, small.CheckVolume(64))
	assert.ErrorIs(t, small.CheckVolume(63), ErrBoxTooLarge)

	full := NewBox(NewPos(MinX, MinY, MinZ), NewPos(MaxX, MaxY, MaxZ))
	assert.ErrorIs(t, full.CheckVolume(MaxWalkVolume), ErrBoxTooLarge)
}

func TestIterateHugeBoxIsNotEmpty(t *testing.T) {
	it := NewBox(NewPos(MinX, MinY, MinZ), NewPos(MaxX, MaxY, MaxZ)).IterateLayers()
	require.True(t, it.Next())
	assert.Equal(t, NewPos(MinX, MinY, MinZ), it.Current().Immutable())
	require.True(t, it.Next())
	assert.Equal(t, NewPos(MinX+1, MinY, MinZ), it.Current().Immutable())
}

func TestParseBox(t *testing.T) {
	b, err := ParseBox("4,70,-2:-4, 60, 2")
	require.NoError(t, err)
	assert.Equal(t, NewPos(-4, 60, -2), b.Min)
	assert.Equal(t, NewPos(4, 70, 2), b.Max)

	again, err := ParseBox(b.String())
	require.NoError(t, err)
	assert.Equal(t, b, again)

	for _, bad := range []string{"", "1,2,3", "1,2,3:4,5", "a,b,c:1,2,3"} {
		_, err := ParseBox(bad)
		assert.Error(t, err, "ввод %q", bad)
	}
}
