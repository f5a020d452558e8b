package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/leadscout/models"
)

func main() {
	apiURL := os.Getenv("LEADSCOUT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8000"
	}
	apiKey := os.Getenv("LEADSCOUT_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "LEADSCOUT_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"leadscout",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	generateTool := mcp.NewTool("generate_leads",
		mcp.WithDescription("Run a lead generation campaign: search the web for prospects matching a business description, deep-scrape the best results and return structured leads with contacts and key people. Takes several minutes."),
		mcp.WithString("prompt",
			mcp.Description("Free-form description of what you sell and who you want to reach. Used when 'services' is not given."),
		),
		mcp.WithString("business", mcp.Description("Your business name")),
		mcp.WithString("services", mcp.Description("Services you offer")),
		mcp.WithString("audience", mcp.Description("Target audience")),
		mcp.WithString("budget", mcp.Description("Budget range of target clients")),
		mcp.WithString("geography", mcp.Description("Target geography")),
		mcp.WithArray("dorks",
			mcp.Description("Explicit search queries. When given, strategy generation is skipped."),
			mcp.WithStringItems(),
		),
	)
	s.AddTool(generateTool, handleGenerateLeads(apiURL, apiKey))

	statusTool := mcp.NewTool("campaign_status",
		mcp.WithDescription("Check the status of a campaign started earlier and return its leads when finished."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Campaign ID returned by generate_leads"),
		),
	)
	s.AddTool(statusTool, handleCampaignStatus(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleGenerateLeads(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req := models.CampaignRequest{
			Prompt: request.GetString("prompt", ""),
			Campaign: models.Campaign{
				Business:  request.GetString("business", ""),
				Services:  request.GetString("services", ""),
				Audience:  request.GetString("audience", ""),
				Budget:    request.GetString("budget", ""),
				Geography: request.GetString("geography", ""),
			},
			Dorks: request.GetStringSlice("dorks", nil),
		}
		if req.Prompt == "" && req.Campaign.Services == "" {
			return mcp.NewToolResultError("either prompt or services is required"), nil
		}

		status, body, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/campaigns", req)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("campaign request failed: %v", err)), nil
		}
		if status != http.StatusAccepted {
			return mcp.NewToolResultError(errorMessage(body, status)), nil
		}
		var created models.CampaignResponse
		if err := json.Unmarshal(body, &created); err != nil || created.ID == "" {
			return mcp.NewToolResultError("campaign creation failed"), nil
		}

		body, err = pollCampaign(ctx, client, apiURL, apiKey, created.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("campaign %s: polling failed: %v", created.ID, err)), nil
		}
		return formatStatus(body)
	}
}

func handleCampaignStatus(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}
		status, body, err := apiGet(ctx, client, apiURL, apiKey, "/api/v1/campaigns/"+id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("status request failed: %v", err)), nil
		}
		if status != http.StatusOK {
			return mcp.NewToolResultError(errorMessage(body, status)), nil
		}
		return formatStatus(body)
	}
}

func formatStatus(body []byte) (*mcp.CallToolResult, error) {
	var st models.CampaignStatusResponse
	if err := json.Unmarshal(body, &st); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse campaign status: %v", err)), nil
	}
	if st.Error != nil {
		return mcp.NewToolResultError(fmt.Sprintf("campaign %s failed: [%s] %s", st.ID, st.Error.Code, st.Error.Message)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Campaign %s: %s", st.ID, st.Status)
	if st.Report == nil {
		fmt.Fprintf(&sb, " (%s %d/%d)\n", st.Progress.Stage, st.Progress.Completed, st.Progress.Total)
		return mcp.NewToolResultText(sb.String()), nil
	}

	s := st.Report.Stats
	fmt.Fprintf(&sb, " (%d queries, %d unique results, %d scraped, %d leads)\n\n", s.Queries, s.Unique, s.Scraped, s.Leads)
	for i, l := range st.Report.Leads {
		fmt.Fprintf(&sb, "--- [%d] %s (%s) ---\n", i+1, l.Company, models.Priority(l.Provenance.Score))
		if l.Contacts.Website != "" {
			fmt.Fprintf(&sb, "Website: %s\n", l.Contacts.Website)
		}
		if len(l.Contacts.Emails) > 0 {
			fmt.Fprintf(&sb, "Emails: %s\n", strings.Join(l.Contacts.Emails, ", "))
		}
		if len(l.Contacts.Phones) > 0 {
			fmt.Fprintf(&sb, "Phones: %s\n", strings.Join(l.Contacts.Phones, ", "))
		}
		for _, p := range l.KeyPeople {
			fmt.Fprintf(&sb, "Person: %s, %s\n", p.Name, p.Title)
		}
		if l.PitchAngle != "" {
			fmt.Fprintf(&sb, "Pitch: %s\n", l.PitchAngle)
		}
		fmt.Fprintf(&sb, "Source: %s\n\n", l.Provenance.Source.URL)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func errorMessage(body []byte, status int) string {
	var e models.ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != nil {
		return fmt.Sprintf("[%s] %s", e.Error.Code, e.Error.Message)
	}
	return fmt.Sprintf("API returned status %d", status)
}

func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return send(client, req, apiKey)
}

func apiGet(ctx context.Context, client *http.Client, apiURL, apiKey, path string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+path, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	return send(client, req, apiKey)
}

func send(client *http.Client, req *http.Request, apiKey string) (int, []byte, error) {
	req.Header.Set("X-API-Key", apiKey)
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return resp.StatusCode, body, err
}

// pollCampaign polls until the campaign is no longer processing or ctx is done.
func pollCampaign(ctx context.Context, client *http.Client, apiURL, apiKey, id string) ([]byte, error) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			status, body, err := apiGet(ctx, client, apiURL, apiKey, "/api/v1/campaigns/"+id)
			if err != nil {
				return nil, err
			}
			if status != http.StatusOK {
				return nil, fmt.Errorf("%s", errorMessage(body, status))
			}
			var st struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(body, &st); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}
			if st.Status != "processing" {
				return body, nil
			}
		}
	}
}
