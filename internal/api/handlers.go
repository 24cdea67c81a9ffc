package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/annel0/blockpos/internal/blockpos"
	"github.com/annel0/blockpos/internal/locator"
	"github.com/annel0/blockpos/internal/storage"
	"github.com/gin-gonic/gin"
)

// PosDTO — позиция в JSON
type PosDTO struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
	Z int32 `json:"z"`
}

func toDTO(p blockpos.Coords) PosDTO {
	return PosDTO{X: p.X(), Y: p.Y(), Z: p.Z()}
}

// PackResponse — ответ /api/pack
type PackResponse struct {
	Packed        int64 `json:"packed"`
	X             int32 `json:"x"`
	Y             int32 `json:"y"`
	Z             int32 `json:"z"`
	Representable bool  `json:"representable"`
}

// BlockResponse — блок в позиции
type BlockResponse struct {
	Pos   PosDTO          `json:"pos"`
	Block storage.BlockID `json:"block"`
}

// SetBlockRequest — тело PUT /api/blocks/:pos
type SetBlockRequest struct {
	Block *storage.BlockID `json:"block" binding:"required"`
}

// NearestResponse — ответ /api/nearest
type NearestResponse struct {
	Found bool    `json:"found"`
	Pos   *PosDTO `json:"pos,omitempty"`
}

// ErrorResponse представляет ошибку API
type ErrorResponse struct {
	Error string `json:"error"`
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
}

// writeError сопоставляет ошибки домена HTTP-статусам
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrOutOfBounds),
		errors.Is(err, locator.ErrRangeTooLarge),
		errors.Is(err, blockpos.ErrBoxTooLarge):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

func parseInt32(c *gin.Context, name string) (int32, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, fmt.Errorf("параметр %s обязателен", name)
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("параметр %s: %w", name, err)
	}
	return int32(v), nil
}

func parseIntDefault(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("параметр %s: %w", name, err)
	}
	return v, nil
}

func parseBlock(raw string) (storage.BlockID, error) {
	v, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("тип блока %q: %w", raw, err)
	}
	return storage.BlockID(v), nil
}

func parsePosQuery(c *gin.Context, name string) (blockpos.Pos, error) {
	raw := c.Query(name)
	if raw == "" {
		return blockpos.Pos{}, fmt.Errorf("параметр %s обязателен", name)
	}
	return blockpos.ParsePos(raw)
}

// handlePack упаковывает координаты в слово
func (rs *RestServer) handlePack(c *gin.Context) {
	var xyz [3]int32
	for i, name := range []string{"x", "y", "z"} {
		v, err := parseInt32(c, name)
		if err != nil {
			badRequest(c, err)
			return
		}
		xyz[i] = v
	}

	pos := blockpos.NewPos(xyz[0], xyz[1], xyz[2])
	c.JSON(http.StatusOK, PackResponse{
		Packed:        pos.Pack(),
		X:             pos.X(),
		Y:             pos.Y(),
		Z:             pos.Z(),
		Representable: blockpos.Representable(pos),
	})
}

// handleUnpack распаковывает слово в координаты
func (rs *RestServer) handleUnpack(c *gin.Context) {
	word, err := strconv.ParseInt(c.Param("word"), 10, 64)
	if err != nil {
		badRequest(c, fmt.Errorf("упакованное слово: %w", err))
		return
	}
	c.JSON(http.StatusOK, toDTO(blockpos.FromPacked(word)))
}

func (rs *RestServer) handleGetBlock(c *gin.Context) {
	pos, err := blockpos.ParsePos(c.Param("pos"))
	if err != nil {
		badRequest(c, err)
		return
	}

	id, err := rs.store.Get(c.Request.Context(), pos)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, BlockResponse{Pos: toDTO(pos), Block: id})
}

func (rs *RestServer) handleSetBlock(c *gin.Context) {
	pos, err := blockpos.ParsePos(c.Param("pos"))
	if err != nil {
		badRequest(c, err)
		return
	}

	var req SetBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Errorf("неверный формат запроса: %w", err))
		return
	}

	if err := rs.store.Set(c.Request.Context(), pos, *req.Block); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, BlockResponse{Pos: toDTO(pos), Block: *req.Block})
}

// handleNearest ищет ближайший блок заданного типа обходом оболочками
func (rs *RestServer) handleNearest(c *gin.Context) {
	center, err := parsePosQuery(c, "pos")
	if err != nil {
		badRequest(c, err)
		return
	}
	block, err := parseBlock(c.Query("block"))
	if err != nil {
		badRequest(c, err)
		return
	}
	h, err := parseIntDefault(c, "h", rs.horizontalRange)
	if err != nil {
		badRequest(c, err)
		return
	}
	v, err := parseIntDefault(c, "v", rs.verticalRange)
	if err != nil {
		badRequest(c, err)
		return
	}
	if h < 0 || v < 0 {
		badRequest(c, fmt.Errorf("радиусы не могут быть отрицательными (%d, %d)", h, v))
		return
	}

	found, ok, err := rs.locator.FindNearestHV(c.Request.Context(), center, h, v, block)
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, NearestResponse{Found: false})
		return
	}
	dto := toDTO(found)
	c.JSON(http.StatusOK, NearestResponse{Found: true, Pos: &dto})
}

func (rs *RestServer) handleBoxCount(c *gin.Context) {
	from, err := parsePosQuery(c, "from")
	if err != nil {
		badRequest(c, err)
		return
	}
	to, err := parsePosQuery(c, "to")
	if err != nil {
		badRequest(c, err)
		return
	}
	block, err := parseBlock(c.Query("block"))
	if err != nil {
		badRequest(c, err)
		return
	}

	count, err := rs.locator.CountInBox(c.Request.Context(), from, to, block)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// handleShell возвращает точки обхода оболочками в порядке обхода
func (rs *RestServer) handleShell(c *gin.Context) {
	center, err := parsePosQuery(c, "pos")
	if err != nil {
		badRequest(c, err)
		return
	}

	var ranges [3]int
	for i, name := range []string{"x", "y", "z"} {
		r, err := parseIntDefault(c, name, 0)
		if err != nil {
			badRequest(c, err)
			return
		}
		if r < 0 {
			badRequest(c, fmt.Errorf("радиус %s не может быть отрицательным (%d)", name, r))
			return
		}
		if r > rs.locator.MaxRange() {
			writeError(c, fmt.Errorf("%w: радиус %d больше %d", locator.ErrRangeTooLarge, r, rs.locator.MaxRange()))
			return
		}
		ranges[i] = r
	}

	limit, err := parseIntDefault(c, "limit", defaultShellLimit)
	if err != nil {
		badRequest(c, err)
		return
	}
	if limit <= 0 || limit > maxShellLimit {
		badRequest(c, fmt.Errorf("limit должен быть в диапазоне 1..%d", maxShellLimit))
		return
	}

	points := make([]PosDTO, 0, min(limit, 256))
	it := blockpos.IterateOutwards(center, ranges[0], ranges[1], ranges[2])
	for len(points) < limit && it.Next() {
		points = append(points, toDTO(it.Current()))
	}
	c.JSON(http.StatusOK, points)
}

func (rs *RestServer) handleHealth(c *gin.Context) {
	count, err := rs.store.Count(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "blocks": count})
}
