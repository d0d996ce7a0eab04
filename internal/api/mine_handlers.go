package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/annel0/deepmine/internal/mining"
	"github.com/annel0/deepmine/internal/storage"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HitResponse: ответ на удар и запуск автоудара
type HitResponse struct {
	Result  string          `json:"result"`
	Applied bool            `json:"applied"`
	Block   *mining.Preview `json:"block,omitempty"`
}

// IssueTokenRequest: запрос на выпуск токена игроку
type IssueTokenRequest struct {
	PlayerID uint64 `json:"player_id" binding:"required"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// startSpan открывает span операции шахты с ID игрока
func (rs *RestServer) startSpan(c *gin.Context, name string) (context.Context, trace.Span) {
	ctx, span := rs.tracer.Start(c.Request.Context(), name)
	span.SetAttributes(attribute.Int64("player.id", int64(playerIDFrom(c))))
	return ctx, span
}

// respondMineError переводит ошибки шахты в HTTP-статусы
func (rs *RestServer) respondMineError(c *gin.Context, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	switch {
	case errors.Is(err, mining.ErrNoProgress):
		abort(c, http.StatusNotFound, "Прогресс игрока не найден")
	case errors.Is(err, mining.ErrNoSession):
		abort(c, http.StatusConflict, "Игрок не в шахте")
	default:
		rs.log.Error("❌ Ошибка шахты для игрока %d: %v", playerIDFrom(c), err)
		abort(c, http.StatusInternalServerError, "Внутренняя ошибка сервера")
	}
}

func (rs *RestServer) handleEnter(c *gin.Context) {
	ctx, span := rs.startSpan(c, "mine.enter")
	defer span.End()

	info, err := rs.mines.EnterMine(ctx, playerIDFrom(c))
	if err != nil {
		rs.respondMineError(c, span, err)
		return
	}
	span.SetAttributes(attribute.Int("mine.region", info.RegionID), attribute.Int("mine.level", info.CurrentLevel))
	ok(c, "Игрок в шахте", info)
}

func (rs *RestServer) handleHit(c *gin.Context) {
	ctx, span := rs.startSpan(c, "mine.hit")
	defer span.End()

	pid := playerIDFrom(c)
	result := rs.mines.HandleHit(ctx, pid)
	span.SetAttributes(attribute.String("mine.hit_result", result.String()))

	resp := HitResponse{Result: result.String(), Applied: result.Applied()}
	if result.Applied() {
		if preview, err := rs.mines.DetectCurrentBlock(ctx, pid); err == nil {
			resp.Block = &preview
		}
	}
	ok(c, "Удар обработан", resp)
}

func (rs *RestServer) handleLoopStart(c *gin.Context) {
	ctx, span := rs.startSpan(c, "mine.loop_start")
	defer span.End()

	result, err := rs.mines.StartLoop(ctx, playerIDFrom(c))
	if err != nil {
		rs.respondMineError(c, span, err)
		return
	}
	ok(c, "Автоудар запущен", HitResponse{Result: result.String(), Applied: result.Applied()})
}

func (rs *RestServer) handleLoopStop(c *gin.Context) {
	rs.mines.StopLoop(playerIDFrom(c))
	ok(c, "Автоудар остановлен", nil)
}

func (rs *RestServer) handleReset(c *gin.Context) {
	ctx, span := rs.startSpan(c, "mine.reset")
	defer span.End()

	info, err := rs.mines.ResetMine(ctx, playerIDFrom(c))
	if err != nil {
		rs.respondMineError(c, span, err)
		return
	}
	ok(c, "Шахта сброшена", info)
}

func (rs *RestServer) handleBlock(c *gin.Context) {
	ctx, span := rs.startSpan(c, "mine.block")
	defer span.End()

	preview, err := rs.mines.DetectCurrentBlock(ctx, playerIDFrom(c))
	if err != nil {
		rs.respondMineError(c, span, err)
		return
	}
	ok(c, "Текущий блок", preview)
}

func (rs *RestServer) handleGetSession(c *gin.Context) {
	pid := playerIDFrom(c)
	prog, found, err := rs.progress.Load(c.Request.Context(), pid)
	if err != nil {
		rs.log.Error("❌ Не удалось загрузить прогресс игрока %d: %v", pid, err)
		abort(c, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}
	if !found {
		abort(c, http.StatusNotFound, "Прогресс игрока не найден")
		return
	}

	info, exists := rs.mines.Session(pid, prog.WorldRegion)
	if !exists {
		abort(c, http.StatusConflict, "Игрок не в шахте")
		return
	}
	ok(c, "Сессия шахты", info)
}

func (rs *RestServer) handleLeave(c *gin.Context) {
	rs.mines.Disconnect(playerIDFrom(c))
	ok(c, "Сессии шахты закрыты", nil)
}

func (rs *RestServer) handleGetPlayer(c *gin.Context) {
	pid := playerIDFrom(c)
	rec, err := rs.progress.Get(c.Request.Context(), pid)
	if errors.Is(err, storage.ErrNotFound) {
		abort(c, http.StatusNotFound, "Прогресс игрока не найден")
		return
	}
	if err != nil {
		rs.log.Error("❌ Не удалось получить запись игрока %d: %v", pid, err)
		abort(c, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}
	ok(c, "Прогресс игрока", rec)
}

// handleSaveProgress записывает характеристики игрока (только для админов)
func (rs *RestServer) handleSaveProgress(c *gin.Context) {
	pid, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || pid == 0 {
		abort(c, http.StatusBadRequest, "Неверный ID игрока")
		return
	}

	var prog mining.Progress
	if err := c.ShouldBindJSON(&prog); err != nil {
		abort(c, http.StatusBadRequest, "Неверный формат запроса: "+err.Error())
		return
	}
	if prog.Power < 0 || prog.WorldRegion < 0 {
		abort(c, http.StatusBadRequest, "Сила и регион не могут быть отрицательными")
		return
	}

	if err := rs.progress.Save(c.Request.Context(), pid, prog); err != nil {
		rs.log.Error("❌ Не удалось сохранить прогресс игрока %d: %v", pid, err)
		abort(c, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}
	rs.log.Info("📝 Прогресс игрока %d обновлён администратором %d", pid, playerIDFrom(c))
	ok(c, "Прогресс сохранён", prog)
}

// handleIssueToken выпускает токен игроку (только для админов)
func (rs *RestServer) handleIssueToken(c *gin.Context) {
	var req IssueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}

	token, err := rs.tokens.Generate(req.PlayerID, req.Username, req.IsAdmin)
	if err != nil {
		rs.log.Error("❌ Не удалось выпустить токен: %v", err)
		abort(c, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}
	ok(c, "Токен выпущен", gin.H{"token": token, "player_id": req.PlayerID})
}
