package controller

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"slingshot-be/internal/dto"
	"slingshot-be/internal/mapper"
	"slingshot-be/internal/service"
	"slingshot-be/pkg/research/broadcast"
	"slingshot-be/pkg/research/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

const sseHeartbeat = 15 * time.Second

// sessionHandlers serves the read, stop and stream endpoints every mode shares.
type sessionHandlers struct {
	service service.IResearchService
	mode    domain.Mode
}

func (h sessionHandlers) Show(ctx *fiber.Ctx) error {
	snap, err := h.service.Get(ctx.UserContext(), h.mode, ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(mapper.ToModeResponse(snap))
}

func (h sessionHandlers) Report(ctx *fiber.Ctx) error {
	report, err := h.service.Report(ctx.UserContext(), h.mode, ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(dto.ReportResponse{
		ExecutiveSummary: report.ExecutiveSummary,
		FullReport:       report.FullReport,
	})
}

func (h sessionHandlers) Stop(ctx *fiber.Ctx) error {
	snap, err := h.service.Stop(ctx.UserContext(), h.mode, ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(mapper.ToModeResponse(snap))
}

// sinceParam reads the replay cursor from Last-Event-ID or ?since=.
func sinceParam(ctx *fiber.Ctx) uint64 {
	raw := ctx.Get("Last-Event-ID")
	if raw == "" {
		raw = ctx.Query("since")
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Events streams the session as Server-Sent Events: replay first, then live
// events until the terminal one.
func (h sessionHandlers) Events(ctx *fiber.Ctx) error {
	// The stream writer runs after the handler returns.
	id := strings.Clone(ctx.Params("id"))
	sub, err := h.service.Subscribe(ctx.UserContext(), h.mode, id, sinceParam(ctx))
	if err != nil {
		return err
	}

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer sub.Close()
		ticker := time.NewTicker(sseHeartbeat)
		defer ticker.Stop()

		for {
			select {
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				if err := writeSSE(w, ev); err != nil {
					return
				}
				if ev.Terminal() {
					return
				}
			case <-ticker.C:
				h.service.Touch(id)
				if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}

func writeSSE(w *bufio.Writer, ev broadcast.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Seq, ev.Kind, data); err != nil {
		return err
	}
	return w.Flush()
}
