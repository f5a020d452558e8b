// Package handler implements the HTTP endpoints of the lead API.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/leadscout/models"
	"github.com/use-agent/leadscout/pipeline"
)

// Generator runs one campaign. *pipeline.Pipeline satisfies it.
type Generator interface {
	Generate(ctx context.Context, c models.Campaign, dorks []string, progress pipeline.ProgressFunc) (*models.RunReport, error)
}

// PromptParser turns free text into a campaign. *strategy.Planner satisfies it.
type PromptParser interface {
	ParsePrompt(ctx context.Context, prompt string) models.Campaign
}

// Gate admits one campaign at a time; every slot shares one browser profile.
type Gate chan struct{}

// NewGate returns an open Gate.
func NewGate() Gate { return make(Gate, 1) }

// TryEnter claims the gate without blocking.
func (g Gate) TryEnter() bool {
	select {
	case g <- struct{}{}:
		return true
	default:
		return false
	}
}

// Leave releases the gate.
func (g Gate) Leave() { <-g }

func errorJSON(c *gin.Context, status int, code, msg string) {
	c.JSON(status, models.ErrorResponse{Error: &models.ErrorDetail{Code: code, Message: msg}})
}

func busy(c *gin.Context) {
	errorJSON(c, http.StatusConflict, models.ErrCodeBusy, "a campaign is already running, try again later")
}

// detail converts err to the API error shape.
func detail(err error) *models.ErrorDetail {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se.ToDetail()
	}
	return &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()}
}

// ToStreamLead flattens a lead for the stream. Priority follows the
// search score that selected the page.
func ToStreamLead(l *models.LeadRecord) models.StreamLead {
	first := func(s []string) string {
		if len(s) == 0 {
			return ""
		}
		return s[0]
	}
	name := l.Company
	if name == "" {
		name = "N/A"
	}
	return models.StreamLead{
		Name:     name,
		Website:  l.Contacts.Website,
		Email:    first(l.Contacts.Emails),
		Phone:    first(l.Contacts.Phones),
		Location: l.BusinessInfo.Location,
		Services: l.BusinessInfo.Industry,
		Category: l.BusinessInfo.Industry,
		Priority: models.Priority(l.Provenance.Score),
	}
}
