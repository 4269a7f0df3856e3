package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/heraldhq/herald/config"
	"github.com/heraldhq/herald/internal/scheduler"
	srv "github.com/heraldhq/herald/internal/server"
)

func main() {
	var root = &cobra.Command{Use: "herald"}

	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the agent daemon and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			return srv.Run(cfg)
		},
	}

	var addr string
	var token string

	var jobs = &cobra.Command{
		Use:   "jobs",
		Short: "List jobs on a running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := apiCall(addr, token, http.MethodGet, "/api/jobs")
			if err != nil {
				return err
			}
			var statuses []scheduler.JobStatus
			if err := json.Unmarshal(body, &statuses); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tSCHEDULE\tENABLED\tSTATE\tLAST OUTCOME\tNEXT RUN")
			for _, s := range statuses {
				outcome := string(s.LastOutcome)
				if outcome == "" {
					outcome = "-"
				}
				next := "-"
				if s.NextRunAt != nil {
					next = s.NextRunAt.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\t%s\n", s.Kind, s.Spec, s.Enabled, s.State, outcome, next)
			}
			return w.Flush()
		},
	}

	var trigger = &cobra.Command{
		Use:   "trigger <kind>",
		Short: "Fire one job immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := apiCall(addr, token, http.MethodPost, "/api/jobs/"+args[0]+"/trigger")
			if err != nil {
				return err
			}
			var resp srv.TriggerResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			fmt.Println(resp.Message)
			return nil
		},
	}

	for _, c := range []*cobra.Command{jobs, trigger} {
		c.Flags().StringVar(&addr, "addr", getenv("HERALD_ADDR", "http://localhost:8421"), "daemon base URL")
		c.Flags().StringVar(&token, "token", os.Getenv("HERALD_API_TOKEN"), "API bearer token")
	}

	root.AddCommand(serve, jobs, trigger)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func apiCall(addr, token, method, path string) ([]byte, error) {
	req, err := http.NewRequest(method, strings.TrimRight(addr, "/")+path, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		var apiErr srv.HTTPError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return nil, fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
