package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	apiKey    string
	examID    string
	userID    string
	limit     int
)

func main() {
	root := &cobra.Command{
		Use:   "proctor-cli",
		Short: "CLI client for the proctoring engine",
	}

	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	root.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("PROCTOR_API_KEY"), "API key")

	root.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE:  runHealth,
	})

	root.AddCommand(&cobra.Command{
		Use:   "sessions",
		Short: "List active proctoring sessions",
		RunE:  runSessions,
	})

	root.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show active-session count and recent violations by type",
		RunE:  runStats,
	})

	violationsCmd := &cobra.Command{
		Use:   "violations",
		Short: "Query the violation log",
		RunE:  runViolations,
	}
	violationsCmd.Flags().StringVar(&examID, "exam", "", "Filter by exam ID")
	violationsCmd.Flags().StringVar(&userID, "user", "", "Filter by user ID")
	violationsCmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows")
	root.AddCommand(violationsCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func get(path string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, serverURL+path, nil)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, body)
	}
	return body, nil
}

func printJSON(body []byte) error {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		fmt.Println(string(body))
		return nil
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	body, err := get("/health")
	if err != nil {
		return err
	}
	return printJSON(body)
}

func runSessions(cmd *cobra.Command, args []string) error {
	body, err := get("/api/sessions")
	if err != nil {
		return err
	}
	return printJSON(body)
}

func runStats(cmd *cobra.Command, args []string) error {
	body, err := get("/api/stats")
	if err != nil {
		return err
	}
	return printJSON(body)
}

func runViolations(cmd *cobra.Command, args []string) error {
	path := fmt.Sprintf("/api/violations?examId=%s&userId=%s&limit=%d", examID, userID, limit)
	body, err := get(path)
	if err != nil {
		return err
	}
	return printJSON(body)
}
