// Package main provides a CLI for interacting with the reelflow server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var serverURL string

func main() {
	rootCmd := &cobra.Command{
		Use:   "reelflow-cli",
		Short: "ReelFlow CLI",
		Long:  "Command-line interface for interacting with the ReelFlow server",
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")

	rootCmd.AddCommand(deployCmd(), pipelineCmd(), runCmd(), statusCmd(), cancelCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func deployCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy <pipeline.yaml>",
		Short: "Deploy a pipeline from a YAML definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			resp, err := http.Post(apiURL("/pipelines/deploy"), "application/yaml", bytes.NewReader(data))
			if err != nil {
				return err
			}
			return printResponse(resp, http.StatusCreated)
		},
	}
}

func pipelineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Pipeline management",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List pipelines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := http.Get(apiURL("/pipelines"))
			if err != nil {
				return err
			}
			return printResponse(resp, http.StatusOK)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <pipeline-id>",
		Short: "Show a pipeline with its nodes and edges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range []string{
				"/pipelines/" + args[0],
				"/pipelines/" + args[0] + "/nodes",
				"/pipelines/" + args[0] + "/edges",
			} {
				resp, err := http.Get(apiURL(path))
				if err != nil {
					return err
				}
				if err := printResponse(resp, http.StatusOK); err != nil {
					return err
				}
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <pipeline-id>",
		Short: "Delete a pipeline (archives it if it has runs)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := http.NewRequest(http.MethodDelete, apiURL("/pipelines/"+args[0]), nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusNoContent {
				body, _ := io.ReadAll(resp.Body)
				return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
			}
			fmt.Println("deleted")
			return nil
		},
	})

	return cmd
}

func runCmd() *cobra.Command {
	var inputJSON string

	cmd := &cobra.Command{
		Use:   "run <pipeline-id>",
		Short: "Start a pipeline run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var input map[string]interface{}
			if inputJSON != "" {
				if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
					return fmt.Errorf("invalid --input JSON: %w", err)
				}
			}

			body, err := json.Marshal(map[string]interface{}{"input": input})
			if err != nil {
				return err
			}

			resp, err := http.Post(apiURL("/pipelines/"+args[0]+"/runs"), "application/json", bytes.NewReader(body))
			if err != nil {
				return err
			}
			return printResponse(resp, http.StatusCreated)
		},
	}

	cmd.Flags().StringVar(&inputJSON, "input", "", "Run input as a JSON object")
	return cmd
}

func statusCmd() *cobra.Command {
	var showResults bool

	cmd := &cobra.Command{
		Use:   "status <run-id>",
		Short: "Show a run's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := http.Get(apiURL("/runs/" + args[0]))
			if err != nil {
				return err
			}
			if err := printResponse(resp, http.StatusOK); err != nil {
				return err
			}

			if showResults {
				resp, err := http.Get(apiURL("/runs/" + args[0] + "/results"))
				if err != nil {
					return err
				}
				return printResponse(resp, http.StatusOK)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showResults, "results", false, "Also show per-node results")
	return cmd
}

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <run-id>",
		Short: "Cancel a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := http.Post(apiURL("/runs/"+args[0]+"/cancel"), "application/json", nil)
			if err != nil {
				return err
			}
			return printResponse(resp, http.StatusOK)
		},
	}
}

func apiURL(path string) string {
	return strings.TrimSuffix(serverURL, "/") + "/api/v1" + path
}

// printResponse pretty-prints a JSON response body, or returns an error for
// unexpected status codes.
func printResponse(resp *http.Response, wantStatus int) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != wantStatus {
		return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(strings.TrimSpace(string(body)))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}
