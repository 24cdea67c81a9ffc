package snapshot

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/annel0/blockpos/internal/blockpos"
	"github.com/annel0/blockpos/internal/logging"
	"github.com/annel0/blockpos/internal/storage"
	"github.com/klauspost/compress/zstd"
)

// Magic открывает каждый снимок.
const Magic = "BPS1"

const (
	bufferSize      = 256 * 1024
	importBatchSize = 4096
)

var (
	// ErrBadMagic — поток не является снимком.
	ErrBadMagic = errors.New("неизвестный формат снимка")

	// ErrOutsideBox — запись снимка лежит вне объявленной области.
	ErrOutsideBox = errors.New("блок вне области снимка")
)

// Header описывает область, сохранённую в снимке.
type Header struct {
	Min blockpos.Pos
	Max blockpos.Pos
}

// Box возвращает область снимка.
func (h Header) Box() blockpos.Box {
	return blockpos.NewBox(h.Min, h.Max)
}

// Export записывает в w сжатый снимок непустых блоков параллелепипеда a..b.
// Возвращает число записанных блоков. Области больше blockpos.MaxWalkVolume
// отклоняются с blockpos.ErrBoxTooLarge.
//
// Формат (внутри zstd):
//
//	"BPS1" | min (8 байт BE) | max (8 байт BE) | { varint(packed) uvarint(block) }...
func Export(ctx context.Context, w io.Writer, store storage.BlockStore, a, b blockpos.Pos) (int, error) {
	if !blockpos.Representable(a) || !blockpos.Representable(b) {
		return 0, fmt.Errorf("%w: %v..%v", storage.ErrOutOfBounds, a, b)
	}
	box := blockpos.NewBox(a, b)
	if err := box.CheckVolume(blockpos.MaxWalkVolume); err != nil {
		return 0, err
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return 0, err
	}
	bw := bufio.NewWriterSize(enc, bufferSize)

	var header [len(Magic) + 16]byte
	copy(header[:], Magic)
	binary.BigEndian.PutUint64(header[len(Magic):], uint64(box.Min.Pack()))
	binary.BigEndian.PutUint64(header[len(Magic)+8:], uint64(box.Max.Pack()))
	if _, err := bw.Write(header[:]); err != nil {
		enc.Close()
		return 0, err
	}

	var (
		written int
		rec     [2 * binary.MaxVarintLen64]byte
	)
	it := box.IterateLayers()
	for it.Next() {
		pos := it.Current().Immutable()
		id, err := store.Get(ctx, pos)
		if err != nil {
			enc.Close()
			return written, fmt.Errorf("чтение %v: %w", pos, err)
		}
		if id == storage.Air {
			continue
		}
		n := binary.PutVarint(rec[:], pos.Pack())
		n += binary.PutUvarint(rec[n:], uint64(id))
		if _, err := bw.Write(rec[:n]); err != nil {
			enc.Close()
			return written, err
		}
		written++
	}

	if err := bw.Flush(); err != nil {
		enc.Close()
		return written, err
	}
	if err := enc.Close(); err != nil {
		return written, err
	}

	logging.GetStorageLogger().Debug("снимок %v..%v: %d блоков", box.Min, box.Max, written)
	return written, nil
}

// Import читает снимок из r и записывает блоки в store.
// Возвращает заголовок и число загруженных блоков.
func Import(ctx context.Context, r io.Reader, store storage.BlockStore) (Header, int, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return Header{}, 0, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, bufferSize)

	header, err := readHeader(br)
	if err != nil {
		return Header{}, 0, err
	}
	box := header.Box()

	var loaded int
	batch := make(map[blockpos.Pos]storage.BlockID, importBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := store.BatchSet(ctx, batch); err != nil {
			return err
		}
		loaded += len(batch)
		clear(batch)
		return nil
	}

	for {
		word, err := binary.ReadVarint(br)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return header, loaded, fmt.Errorf("запись снимка: %w", err)
		}
		id, err := binary.ReadUvarint(br)
		if err != nil {
			return header, loaded, fmt.Errorf("запись снимка: %w", noEOF(err))
		}
		if id > uint64(^storage.BlockID(0)) {
			return header, loaded, fmt.Errorf("запись снимка: тип блока %d вне диапазона", id)
		}

		pos := blockpos.FromPacked(word)
		if !box.Contains(pos) {
			return header, loaded, fmt.Errorf("%w: %v", ErrOutsideBox, pos)
		}
		batch[pos] = storage.BlockID(id)

		if len(batch) >= importBatchSize {
			if err := flush(); err != nil {
				return header, loaded, err
			}
		}
	}
	if err := flush(); err != nil {
		return header, loaded, err
	}

	logging.GetStorageLogger().Debug("загружен снимок %v..%v: %d блоков", header.Min, header.Max, loaded)
	return header, loaded, nil
}

func readHeader(r io.Reader) (Header, error) {
	var buf [len(Magic) + 16]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, ErrBadMagic
		}
		return Header{}, err
	}
	if string(buf[:len(Magic)]) != Magic {
		return Header{}, ErrBadMagic
	}
	return Header{
		Min: blockpos.FromPacked(int64(binary.BigEndian.Uint64(buf[len(Magic):]))),
		Max: blockpos.FromPacked(int64(binary.BigEndian.Uint64(buf[len(Magic)+8:]))),
	}, nil
}

// обрыв посреди записи — повреждённый поток, а не конец
func noEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
