package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sierra-export/internal/core/domain"
	httpShell "sierra-export/internal/shell/http"
)

// exportctl is the operator CLI for the export service. It talks to
// the HTTP API, so it works against any deployment the operator can
// reach.

var (
	apiURL   string
	username string
)

func main() {
	root := &cobra.Command{
		Use:           "exportctl",
		Short:         "Manage Sierra-to-Solr export jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&apiURL, "url", "http://localhost:8000", "Export service base URL")
	root.PersistentFlags().StringVar(&username, "username", "", "Staff username recorded on triggered exports")

	root.AddCommand(runCmd(), listCmd(), statusCmd(), typesCmd(), filtersCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var filter string
	var options []string

	cmd := &cobra.Command{
		Use:   "run <export-type>",
		Short: "Trigger an export run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filterOptions, err := parseOptions(options)
			if err != nil {
				return err
			}

			body := map[string]interface{}{
				"export_type":   args[0],
				"export_filter": filter,
			}
			if len(filterOptions) > 0 {
				body["filter_options"] = filterOptions
			}

			var instance httpShell.ExportResponse
			if err := apiPost("/api/v1/exports", body, &instance); err != nil {
				return err
			}

			fmt.Printf("Export accepted:\n")
			printInstance(instance)
			return nil
		},
	}
	cmd.Flags().StringVar(&filter, "filter", domain.FilterFullExport, "Export filter code")
	cmd.Flags().StringArrayVar(&options, "option", nil, "Filter option as key=value (repeatable)")
	return cmd
}

func listCmd() *cobra.Command {
	var status, exportType string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List export runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			if status != "" {
				query.Set("status", status)
			}
			if exportType != "" {
				query.Set("export_type", exportType)
			}
			query.Set("limit", strconv.Itoa(limit))
			query.Set("offset", strconv.Itoa(offset))

			var result struct {
				Meta httpShell.PaginationMeta   `json:"meta"`
				Data []httpShell.ExportResponse `json:"data"`
			}
			if err := apiGet("/api/v1/exports?"+query.Encode(), &result); err != nil {
				return err
			}

			fmt.Printf("Found %d exports:\n", result.Meta.Count)
			for _, instance := range result.Data {
				fmt.Printf("- %s  %s (%s)  %s\n", instance.ID, instance.ExportType,
					instance.Filter, instance.Status)
				fmt.Printf("  Started: %s  Errors: %d  Warnings: %d  By: %s\n",
					instance.Timestamp.Format(time.RFC3339), instance.Errors,
					instance.Warnings, instance.Username)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (waiting, in_progress, success, done_with_errors, errors)")
	cmd.Flags().StringVar(&exportType, "type", "", "Filter by export type code")
	cmd.Flags().IntVar(&limit, "limit", 20, "Page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "Page offset")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <instance-id>",
		Short: "Show one export run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var instance httpShell.ExportResponse
			if err := apiGet("/api/v1/exports/"+args[0], &instance); err != nil {
				return err
			}
			printInstance(instance)
			return nil
		},
	}
}

func typesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the available export types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var types []domain.ExportType
			if err := apiGet("/api/v1/export-types", &types); err != nil {
				return err
			}

			for _, t := range types {
				mode := "serial"
				if t.Parallel {
					mode = "parallel"
				}
				fmt.Printf("- %s: %s (%s, chunk %d/%d)\n", t.Code, t.Label, mode,
					t.MaxRecChunk, t.MaxDelChunk)
				if t.Description != "" {
					fmt.Printf("  %s\n", t.Description)
				}
			}
			return nil
		},
	}
}

func filtersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "filters",
		Short: "List the available export filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filters []domain.ExportFilter
			if err := apiGet("/api/v1/export-filters", &filters); err != nil {
				return err
			}

			for _, f := range filters {
				fmt.Printf("- %s: %s\n", f.Code, f.Label)
			}
			return nil
		},
	}
}

func printInstance(instance httpShell.ExportResponse) {
	fmt.Printf("  ID: %s\n", instance.ID)
	fmt.Printf("  Type: %s\n", instance.ExportType)
	fmt.Printf("  Filter: %s (%s)\n", instance.FilterLabel, instance.Filter)
	if len(instance.Options) > 0 {
		fmt.Printf("  Options:\n")
		for key, value := range instance.Options {
			fmt.Printf("    %s: %v\n", key, value)
		}
	}
	fmt.Printf("  Status: %s\n", instance.Status)
	fmt.Printf("  Started: %s\n", instance.Timestamp.Format(time.RFC3339))
	fmt.Printf("  Errors: %d  Warnings: %d\n", instance.Errors, instance.Warnings)
	fmt.Printf("  Triggered by: %s\n", instance.Username)
}

// parseOptions turns repeated key=value flags into a filter options map.
func parseOptions(raw []string) (map[string]interface{}, error) {
	options := map[string]interface{}{}
	for _, entry := range raw {
		key, value, found := strings.Cut(entry, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --option %q (want key=value)", entry)
		}
		options[key] = value
	}
	return options, nil
}

func apiGet(path string, out interface{}) error {
	req, err := http.NewRequest("GET", apiURL+path, nil)
	if err != nil {
		return err
	}
	return apiDo(req, out)
}

func apiPost(path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest("POST", apiURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return apiDo(req, out)
}

func apiDo(req *http.Request, out interface{}) error {
	if username != "" {
		req.Header.Set("X-Username", username)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp httpShell.ErrorResponse
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &errResp) == nil && len(errResp.Errors) > 0 {
			return fmt.Errorf("%s: %s", errResp.Errors[0].Title, errResp.Errors[0].Detail)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
