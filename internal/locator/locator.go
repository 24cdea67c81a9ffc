package locator

import (
	"context"
	"errors"
	"fmt"

	"github.com/annel0/blockpos/internal/blockpos"
	"github.com/annel0/blockpos/internal/logging"
	"github.com/annel0/blockpos/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName — имя инструментирования для спанов поиска.
const tracerName = "github.com/annel0/blockpos/internal/locator"

const (
	// DefaultMaxRange — предельный радиус поиска по умолчанию
	DefaultMaxRange = 128
	// DefaultMaxVolume — предельный объём обходимой области
	DefaultMaxVolume = blockpos.MaxWalkVolume

	fillBatchSize = 4096
)

// ErrRangeTooLarge — радиус поиска или объём области превышает лимит.
var ErrRangeTooLarge = errors.New("слишком большая область")

// Locator ищет блоки в хранилище, обходя решётку курсорами blockpos.
type Locator struct {
	store     storage.BlockStore
	metrics   *Metrics
	log       *logging.Logger
	tracer    trace.Tracer
	maxRange  int
	maxVolume int64
}

// Option настраивает Locator.
type Option func(*Locator)

// WithMaxRange ограничивает радиусы поиска.
func WithMaxRange(r int) Option {
	return func(l *Locator) { l.maxRange = r }
}

// WithMaxVolume ограничивает объём области для CountInBox/FillBox.
func WithMaxVolume(v int64) Option {
	return func(l *Locator) { l.maxVolume = v }
}

// WithTracerProvider задаёт провайдер спанов; по умолчанию глобальный otel.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(l *Locator) { l.tracer = tp.Tracer(tracerName) }
}

// WithLogger подменяет логгер компонента.
func WithLogger(log *logging.Logger) Option {
	return func(l *Locator) { l.log = log }
}

// New создаёт Locator. metrics может быть nil.
func New(store storage.BlockStore, metrics *Metrics, opts ...Option) *Locator {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	l := &Locator{
		store:     store,
		metrics:   metrics,
		maxRange:  DefaultMaxRange,
		maxVolume: DefaultMaxVolume,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = logging.GetSearchLogger()
	}
	if l.tracer == nil {
		l.tracer = otel.Tracer(tracerName)
	}
	return l
}

// Store возвращает хранилище, с которым работает Locator.
func (l *Locator) Store() storage.BlockStore {
	return l.store
}

// MaxRange возвращает предельный радиус поиска.
func (l *Locator) MaxRange() int {
	return l.maxRange
}

// FindNearest ищет ближайшую (в порядке обхода оболочками) позицию с блоком want.
// Позиции вне упаковываемого диапазона считаются пустыми.
// Первая ошибка хранилища прерывает поиск.
func (l *Locator) FindNearest(ctx context.Context, center blockpos.Pos, xRange, yRange, zRange int, want storage.BlockID) (blockpos.Pos, bool, error) {
	ctx, span := l.tracer.Start(ctx, "locator.FindNearest", trace.WithAttributes(
		attribute.String("blockpos.center", center.ShortString()),
		attribute.Int("blockpos.block", int(want)),
		attribute.IntSlice("blockpos.ranges", []int{xRange, yRange, zRange}),
	))
	defer span.End()

	found, ok, candidates, err := l.findNearest(ctx, center, xRange, yRange, zRange, want)
	span.SetAttributes(
		attribute.Int("blockpos.candidates", candidates),
		attribute.Bool("blockpos.found", ok),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return found, ok, err
}

func (l *Locator) findNearest(ctx context.Context, center blockpos.Pos, xRange, yRange, zRange int, want storage.BlockID) (blockpos.Pos, bool, int, error) {
	if err := l.checkRanges(xRange, yRange, zRange); err != nil {
		return blockpos.Pos{}, false, 0, err
	}

	var (
		searchErr  error
		candidates int
	)
	found, ok := blockpos.FindClosest(center, xRange, yRange, zRange, func(c blockpos.Coords) bool {
		candidates++
		if !blockpos.Representable(c) {
			return false
		}
		id, err := l.store.Get(ctx, blockpos.Immutable(c))
		if err != nil {
			searchErr = err
			return true
		}
		return id == want
	})

	if searchErr != nil {
		l.metrics.observeSearch("error", candidates)
		l.log.Warn("поиск блока %d от %v прерван: %v", want, center, searchErr)
		return blockpos.Pos{}, false, candidates, fmt.Errorf("поиск от %v: %w", center, searchErr)
	}

	if !ok {
		l.metrics.observeSearch("miss", candidates)
		l.log.Debug("блок %d не найден от %v (радиусы %d/%d/%d, проверено %d)",
			want, center, xRange, yRange, zRange, candidates)
		return blockpos.Pos{}, false, candidates, nil
	}

	l.metrics.observeSearch("hit", candidates)
	l.log.Debug("блок %d найден в %v от %v после %d проверок", want, found, center, candidates)
	return found, true, candidates, nil
}

// FindNearestHV — FindNearest с горизонтальным радиусом по X/Z и вертикальным по Y.
func (l *Locator) FindNearestHV(ctx context.Context, center blockpos.Pos, horizontal, vertical int, want storage.BlockID) (blockpos.Pos, bool, error) {
	return l.FindNearest(ctx, center, horizontal, vertical, horizontal, want)
}

// CountInBox считает позиции с блоком want в параллелепипеде.
func (l *Locator) CountInBox(ctx context.Context, a, b blockpos.Pos, want storage.BlockID) (int64, error) {
	box, err := l.checkBox(a, b)
	if err != nil {
		return 0, err
	}

	var count, visited int64
	it := box.IterateLayers()
	for it.Next() {
		visited++
		id, err := l.store.Get(ctx, it.Current().Immutable())
		if err != nil {
			l.metrics.addBoxPoints("count", visited)
			return count, fmt.Errorf("подсчёт в %v..%v: %w", box.Min, box.Max, err)
		}
		if id == want {
			count++
		}
	}

	l.metrics.addBoxPoints("count", visited)
	return count, nil
}

// FillBox записывает блок id во все позиции параллелепипеда пакетами.
// Возвращает число записанных позиций.
func (l *Locator) FillBox(ctx context.Context, a, b blockpos.Pos, id storage.BlockID) (int64, error) {
	box, err := l.checkBox(a, b)
	if err != nil {
		return 0, err
	}

	var written int64
	batch := make(map[blockpos.Pos]storage.BlockID, fillBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := l.store.BatchSet(ctx, batch); err != nil {
			return err
		}
		written += int64(len(batch))
		clear(batch)
		return nil
	}

	it := box.IterateLayers()
	for it.Next() {
		batch[it.Current().Immutable()] = id
		if len(batch) >= fillBatchSize {
			if err := flush(); err != nil {
				l.metrics.addBoxPoints("fill", written)
				return written, fmt.Errorf("заполнение %v..%v: %w", box.Min, box.Max, err)
			}
		}
	}
	if err := flush(); err != nil {
		l.metrics.addBoxPoints("fill", written)
		return written, fmt.Errorf("заполнение %v..%v: %w", box.Min, box.Max, err)
	}

	l.metrics.addBoxPoints("fill", written)
	l.log.Info("область %v..%v заполнена блоком %d (%d позиций)", box.Min, box.Max, id, written)
	return written, nil
}

func (l *Locator) checkRanges(ranges ...int) error {
	for _, r := range ranges {
		if r < 0 {
			return fmt.Errorf("отрицательный радиус поиска: %d", r)
		}
		if r > l.maxRange {
			return fmt.Errorf("%w: радиус %d больше %d", ErrRangeTooLarge, r, l.maxRange)
		}
	}
	return nil
}

func (l *Locator) checkBox(a, b blockpos.Pos) (blockpos.Box, error) {
	if !blockpos.Representable(a) || !blockpos.Representable(b) {
		return blockpos.Box{}, fmt.Errorf("%w: %v..%v", storage.ErrOutOfBounds, a, b)
	}
	box := blockpos.NewBox(a, b)
	if err := box.CheckVolume(l.maxVolume); err != nil {
		return blockpos.Box{}, fmt.Errorf("%w: %w", ErrRangeTooLarge, err)
	}
	return box, nil
}
