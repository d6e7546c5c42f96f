package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/vigilhq/vigil/internal/api"
	"github.com/vigilhq/vigil/internal/biz/domain"
)

// vigil-status prints a one-screen summary of the running daemon.

func main() {
	apiURL := os.Getenv("VIGIL_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:9877"
	}
	if len(os.Args) > 1 {
		apiURL = os.Args[1]
	}
	apiURL = strings.TrimRight(apiURL, "/")

	var status api.StatusResponse
	if err := fetch(apiURL+"/api/status", &status); err != nil {
		fmt.Printf("Failed to reach vigil at %s: %v\n", apiURL, err)
		os.Exit(1)
	}

	var pending struct {
		Alerts []*domain.PendingAlert `json:"alerts"`
	}
	if err := fetch(apiURL+"/api/pending", &pending); err != nil {
		fmt.Printf("Failed to list pending alerts: %v\n", err)
		os.Exit(1)
	}

	printStatus(&status, pending.Alerts)
}

func fetch(url string, out interface{}) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return json.Unmarshal(data, out)
}

func printStatus(status *api.StatusResponse, pending []*domain.PendingAlert) {
	budget := status.Budget

	fmt.Printf("Vigil status (%s)\n\n", budget.Date)
	fmt.Printf("Budget:     %d/%d sent, %d remaining\n", budget.MessagesSent, status.DailyLimit, status.Remaining)
	fmt.Printf("            %d responses, %d ignored, %d skipped\n", budget.UserResponses, budget.Ignored, len(budget.Skipped))

	if status.Queue != nil {
		fmt.Printf("Queue:      %d open of %d total\n", status.Queue.Unacknowledged, status.Queue.Total)
		if len(status.Queue.ByCategory) > 0 {
			fmt.Printf("            %s\n", categoryLine(status.Queue.ByCategory))
		}
	}

	quiet := "no"
	if status.QuietHours {
		quiet = "yes"
	}
	fmt.Printf("Quiet now:  %s\n", quiet)
	fmt.Printf("Definitions: %d active\n", status.ActiveDefinitions)

	if len(pending) > 0 {
		fmt.Println("\nOpen alerts:")
		for _, a := range pending {
			line := fmt.Sprintf("  • [%s] %s (%s, sent %d", a.Priority, a.Title, a.AlertKey, a.SendCount)
			if a.LastSentAt != nil {
				line += ", last " + a.LastSentAt.Local().Format("15:04")
			}
			fmt.Println(line + ")")
		}
	}

	if len(budget.Skipped) > 0 {
		fmt.Println("\nSkipped today:")
		for _, s := range budget.Skipped {
			fmt.Printf("  • [%s] %s (%s)\n", s.Priority, s.Title, s.Reason)
		}
	}
}

func categoryLine(byCategory map[string]int) string {
	keys := make([]string, 0, len(byCategory))
	for k := range byCategory {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", k, byCategory[k]))
	}
	return strings.Join(parts, ", ")
}
