package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/leadscout/models"
)

type sseEvent struct {
	name string
	data gin.H
}

// StreamLeads returns a handler for POST /api/v1/leads/stream.
//
// The prompt is parsed into a campaign and run; the response is a
// server-sent event stream of "progress" events, one "leads" event per
// lead, then "complete" or "error". Progress events may be dropped when
// the client reads slower than the campaign advances.
func StreamLeads(gen Generator, parser PromptParser, gate Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.StreamRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			errorJSON(c, http.StatusBadRequest, models.ErrCodeInvalidInput, "prompt is required")
			return
		}
		if !gate.TryEnter() {
			busy(c)
			return
		}

		ctx := c.Request.Context()
		events := make(chan sseEvent, 64)
		send := func(ev sseEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		go func() {
			defer close(events)
			defer gate.Leave()

			campaign := parser.ParsePrompt(ctx, req.Prompt)
			send(progressEvent(models.Progress{}))

			rep, err := gen.Generate(ctx, campaign, nil, func(p models.Progress) {
				select {
				case events <- progressEvent(p):
				default:
				}
			})
			if err != nil {
				slog.Error("stream: campaign failed", "error", err)
				d := detail(err)
				send(sseEvent{name: "error", data: gin.H{"type": "error", "code": d.Code, "message": d.Message}})
				return
			}
			for i := range rep.Leads {
				lead := ToStreamLead(&rep.Leads[i])
				if !send(sseEvent{name: "leads", data: gin.H{"type": "leads", "leads": []models.StreamLead{lead}}}) {
					return
				}
			}
			send(sseEvent{name: "complete", data: gin.H{"type": "complete", "total_leads": len(rep.Leads), "stats": rep.Stats}})
		}()

		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Stream(func(w io.Writer) bool {
			ev, ok := <-events
			if !ok {
				return false
			}
			c.SSEvent(ev.name, ev.data)
			return true
		})
	}
}

func progressEvent(p models.Progress) sseEvent {
	return sseEvent{name: "progress", data: gin.H{
		"type":        "progress",
		"stage":       p.Stage,
		"progress":    gin.H{"current": p.Completed, "total": p.Total},
		"leads_count": leadsCount(p),
	}}
}

func leadsCount(p models.Progress) int {
	if p.Stage == models.StageScrape {
		return p.Count
	}
	return 0
}
