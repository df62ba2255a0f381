package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/simplexsearch/internal/server"
)

var (
	serverURL    string
	statusCancel bool
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job; --cancel stops it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	statusCmd.Flags().BoolVar(&statusCancel, "cancel", false, "Cancel the given job")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	base := strings.TrimRight(serverURL, "/")

	if len(args) == 0 {
		if statusCancel {
			return fmt.Errorf("--cancel requires a job id")
		}
		return listJobs(out, base+"/api/v1/jobs")
	}

	jobID := args[0]
	if statusCancel {
		return cancelJob(out, fmt.Sprintf("%s/api/v1/jobs/%s", base, jobID), jobID)
	}
	return getJobStatus(out, fmt.Sprintf("%s/api/v1/jobs/%s/status", base, jobID), jobID)
}

func listJobs(out io.Writer, url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return serverError(resp)
	}

	var jobs []server.Job
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found")
		return nil
	}

	fmt.Fprintf(out, "Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Fprintf(out, "Job ID: %s\n", job.ID)
		fmt.Fprintf(out, "  State: %s\n", job.State)
		fmt.Fprintf(out, "  Binary: %s (dim %d, %s)\n", job.Config.Binary, job.Config.Dim, job.Config.Method)
		if job.Evaluations > 0 {
			fmt.Fprintf(out, "  Evaluations: %d of %d\n", job.Evaluations, job.Config.MaxEvaluations)
			fmt.Fprintf(out, "  Best: %.6g\n", job.BestValue)
		}
		fmt.Fprintln(out)
	}

	return nil
}

func getJobStatus(out io.Writer, url, jobID string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if resp.StatusCode != http.StatusOK {
		return serverError(resp)
	}

	var status server.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if status.Job == nil {
		return fmt.Errorf("server returned an empty status for %s", jobID)
	}
	job := status.Job

	fmt.Fprintf(out, "Job: %s\n", job.ID)
	fmt.Fprintf(out, "State: %s\n", job.State)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintf(out, "  Binary: %s\n", job.Config.Binary)
	if len(job.Config.Args) > 0 {
		fmt.Fprintf(out, "  Args: %s\n", strings.Join(job.Config.Args, " "))
	}
	fmt.Fprintf(out, "  Method: %s\n", job.Config.Method)
	fmt.Fprintf(out, "  Dimensions: %d\n", job.Config.Dim)
	fmt.Fprintf(out, "  Amount: %g\n", job.Config.Amount)
	fmt.Fprintf(out, "  Budget: %d evaluations\n", job.Config.MaxEvaluations)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Progress:")
	fmt.Fprintf(out, "  Evaluations: %d\n", job.Evaluations)
	fmt.Fprintf(out, "  Restarts: %d\n", job.Restarts)
	if len(job.BestPoint) > 0 {
		fmt.Fprintf(out, "  Best Value: %.6g\n", job.BestValue)
		fmt.Fprintf(out, "  Best Point: %v\n", job.BestPoint)
	}
	if job.Profile != "" {
		fmt.Fprintf(out, "  Profile: %s\n", job.Profile)
	}
	elapsed := time.Duration(status.Elapsed * float64(time.Second))
	fmt.Fprintf(out, "  Elapsed: %s\n", elapsed.Round(time.Millisecond))
	if status.EvalsPerSecond > 0 {
		fmt.Fprintf(out, "  Throughput: %.1f evals/sec\n", status.EvalsPerSecond)
	}
	if job.Stop != "" {
		fmt.Fprintf(out, "  Stop: %s\n", job.Stop)
	}

	if job.Error != "" {
		fmt.Fprintf(out, "\nError: %s\n", job.Error)
	}

	return nil
}

func cancelJob(out io.Writer, url, jobID string) error {
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted, http.StatusOK:
		fmt.Fprintf(out, "Cancellation requested for job %s\n", jobID)
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("job not found: %s", jobID)
	default:
		return serverError(resp)
	}
}

func serverError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
