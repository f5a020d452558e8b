package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/use-agent/leadscout/models"
	"github.com/use-agent/leadscout/webhook"
)

// Campaign job statuses.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Jobs holds async campaigns in memory. Finished jobs expire after ttl.
type Jobs struct {
	mu   sync.RWMutex
	jobs map[string]*models.CampaignJob
	ttl  time.Duration
}

// NewJobs creates a job store. When ttl > 0 a janitor goroutine drops
// expired jobs until ctx is done.
func NewJobs(ctx context.Context, ttl time.Duration) *Jobs {
	j := &Jobs{jobs: make(map[string]*models.CampaignJob), ttl: ttl}
	if ttl > 0 {
		go j.janitor(ctx)
	}
	return j
}

func (j *Jobs) janitor(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			j.sweep(now)
		}
	}
}

func (j *Jobs) sweep(now time.Time) {
	cutoff := now.Add(-j.ttl).Unix()
	j.mu.Lock()
	defer j.mu.Unlock()
	for id, job := range j.jobs {
		if job.Status != StatusProcessing && job.CreatedAt < cutoff {
			delete(j.jobs, id)
		}
	}
}

func (j *Jobs) put(job *models.CampaignJob) {
	j.mu.Lock()
	j.jobs[job.ID] = job
	j.mu.Unlock()
}

func (j *Jobs) update(id string, fn func(*models.CampaignJob)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if job, ok := j.jobs[id]; ok {
		fn(job)
	}
}

// Get returns a copy of the job with id.
func (j *Jobs) Get(id string) (models.CampaignJob, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	job, ok := j.jobs[id]
	if !ok {
		return models.CampaignJob{}, false
	}
	return *job, true
}

// PostCampaign returns a handler for POST /api/v1/campaigns.
//
// The campaign runs in the background and the handler answers 202 with
// the job ID. A request arriving while another campaign runs gets 409.
func PostCampaign(gen Generator, parser PromptParser, gate Gate, jobs *Jobs, notifier *webhook.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CampaignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			errorJSON(c, http.StatusBadRequest, models.ErrCodeInvalidInput, err.Error())
			return
		}
		if req.Campaign.Services == "" && req.Prompt == "" {
			errorJSON(c, http.StatusBadRequest, models.ErrCodeInvalidInput, "campaign.services or prompt is required")
			return
		}
		if !gate.TryEnter() {
			busy(c)
			return
		}

		job := &models.CampaignJob{
			ID:            uuid.NewString(),
			Status:        StatusProcessing,
			CreatedAt:     time.Now().Unix(),
			WebhookURL:    req.WebhookURL,
			WebhookSecret: req.WebhookSecret,
		}
		jobs.put(job)

		go func(id string) {
			defer gate.Leave()
			runCampaign(context.Background(), id, req, gen, parser, jobs, notifier)
		}(job.ID)

		c.JSON(http.StatusAccepted, models.CampaignResponse{ID: job.ID, Status: StatusProcessing})
	}
}

func runCampaign(ctx context.Context, id string, req models.CampaignRequest, gen Generator, parser PromptParser, jobs *Jobs, notifier *webhook.Notifier) {
	campaign := req.Campaign
	if campaign.Services == "" {
		campaign = parser.ParsePrompt(ctx, req.Prompt)
	}

	rep, err := gen.Generate(ctx, campaign, req.Dorks, func(p models.Progress) {
		jobs.update(id, func(j *models.CampaignJob) { j.Progress = p })
	})

	event := &webhook.Event{CampaignID: id, Timestamp: time.Now().Unix()}
	if err != nil {
		slog.Error("campaign: failed", "id", id, "error", err)
		d := detail(err)
		jobs.update(id, func(j *models.CampaignJob) {
			j.Status = StatusFailed
			j.Error = d
			j.Report = rep
		})
		event.Type = webhook.EventCampaignFailed
		event.Data = d
	} else {
		slog.Info("campaign: completed", "id", id, "leads", len(rep.Leads))
		jobs.update(id, func(j *models.CampaignJob) {
			j.Status = StatusCompleted
			j.Report = rep
		})
		event.Type = webhook.EventCampaignCompleted
		event.Data = rep
	}

	if req.WebhookURL != "" && notifier != nil {
		notifier.DeliverAsync(req.WebhookURL, req.WebhookSecret, event)
	}
}

// GetCampaign returns a handler for GET /api/v1/campaigns/:id.
func GetCampaign(jobs *Jobs) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := jobs.Get(c.Param("id"))
		if !ok {
			errorJSON(c, http.StatusNotFound, models.ErrCodeInvalidInput, "campaign not found")
			return
		}
		c.JSON(http.StatusOK, models.CampaignStatusResponse{
			ID:       job.ID,
			Status:   job.Status,
			Progress: job.Progress,
			Report:   job.Report,
			Error:    job.Error,
		})
	}
}
