package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var listJobsCmd = &cobra.Command{
	Use:   "list-jobs",
	Short: "List all jobs defined in configuration",
	Long: `List-jobs displays all migration jobs defined in the configuration file
along with their source, target and settings.

Example:
  gomigrate list-jobs --config migrate.yaml`,
	RunE: runListJobs,
}

func init() {
	rootCmd.AddCommand(listJobsCmd)
}

func runListJobs(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	jobNames := cfg.ListJobs()
	if len(jobNames) == 0 {
		cmd.Printf("No jobs defined in %s\n", configFile)
		return nil
	}

	cmd.Printf("Jobs defined in %s:\n\n", configFile)

	for i, jobName := range jobNames {
		job, err := cfg.GetJob(jobName)
		if err != nil {
			return fmt.Errorf("failed to get job %q: %w", jobName, err)
		}

		cmd.Printf("%d. %s\n", i+1, jobName)
		cmd.Printf("   Source:        %s\n", job.Source.Describe())
		cmd.Printf("   Target Table:  %s\n", job.TargetTable)
		cmd.Printf("   Primary Key:   %s\n", job.PrimaryKey)

		if len(job.Mapping) > 0 {
			pairs := make([]string, 0, len(job.Mapping))
			for _, e := range job.Mapping {
				pairs = append(pairs, e.Source+" -> "+e.Target)
			}
			cmd.Printf("   Mapping:       %s\n", strings.Join(pairs, ", "))
		} else {
			cmd.Printf("   Mapping:       (identity)\n")
		}

		policy := job.GetJobPolicy(cfg.Policy)
		cmd.Printf("   On Conflict:   %s\n", policy.OnConflict)

		if job.Processing != nil {
			cmd.Printf("   Processing:    Custom (batch_size=%d, workers=%d)\n",
				job.Processing.BatchSize, job.Processing.Workers)
		}
		if job.Verification != nil {
			cmd.Printf("   Verification:  Custom (method=%s, skip=%v)\n",
				job.Verification.Method, job.Verification.SkipVerification)
		}

		if i < len(jobNames)-1 {
			cmd.Println()
		}
	}

	cmd.Printf("\nTotal: %d job(s)\n", len(jobNames))
	return nil
}
