package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// reindexCmd triggers a reindex run on a running daemon.
var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Trigger a reindex on a running ragd server",
	Long: `Trigger a manual reindex run.

Examples:
  # Trigger against the default server
  ragd reindex

  # Use a different server
  ragd reindex --server http://localhost:8080`,
	RunE: runReindexTrigger,
}

// statusCmd shows the reindex pipeline status.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show reindex pipeline status",
	RunE:  runStatus,
}

// jobView matches the job JSON served by internal/http.
type jobView struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	StartTime string `json:"start_time"`
	Metadata  struct {
		TriggerType string `json:"trigger_type"`
	} `json:"metadata"`
}

// statusView matches the status JSON served by internal/http.
type statusView struct {
	LastRun       string  `json:"last_run"`
	NextScheduled string  `json:"next_scheduled"`
	SLATarget     float64 `json:"sla_target"`
	SLA           struct {
		Compliant    bool    `json:"compliant"`
		StaleDocRate float64 `json:"stale_doc_rate"`
	} `json:"sla"`
	RecentJobs []jobView `json:"recent_jobs"`
}

func runReindexTrigger(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/api/v1/reindex", serverURL)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(url, "application/json", strings.NewReader(`{"trigger_type":"manual"}`))
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return fmt.Errorf("a reindex is already in flight")
	}
	if resp.StatusCode != http.StatusAccepted {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var job jobView
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Reindex triggered\n")
	fmt.Printf("Job ID:  %s\n", job.ID)
	fmt.Printf("Status:  %s\n", job.Status)
	fmt.Printf("Trigger: %s\n", job.Metadata.TriggerType)

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/api/v1/reindex/status", serverURL)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var status statusView
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Last run:       %s\n", status.LastRun)
	fmt.Printf("Next scheduled: %s\n", status.NextScheduled)
	fmt.Printf("SLA target:     %.4f\n", status.SLATarget)
	fmt.Printf("SLA compliant:  %t (stale rate %.4f)\n", status.SLA.Compliant, status.SLA.StaleDocRate)
	fmt.Printf("Recent jobs:    %d\n", len(status.RecentJobs))
	for _, job := range status.RecentJobs {
		fmt.Printf("  %s  %-9s  %s\n", job.ID, job.Status, job.StartTime)
	}

	return nil
}
