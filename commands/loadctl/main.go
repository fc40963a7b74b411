// The loadctl command loads files into CacheFS cluster memory by driving
// asynchronous load jobs on the job master. Configuration comes from
// ~/.config/loadctl/loadctl.yaml (or $LOADCTL_CONFIG) and the CACHEFS_*
// environment variables.
package main

import (
	"fmt"
	"os"

	metrics "github.com/Shyp/go-simple-metrics"
	"github.com/spf13/cobra"

	"github.com/cachefs/loadctl/config"
	"github.com/cachefs/loadctl/dispatch"
	"github.com/cachefs/loadctl/jobmaster"
	"github.com/cachefs/loadctl/metastore"
)

const defaultReplication = 1

func newLoadCmd() *cobra.Command {
	var replication int
	var activeJobs int
	cmd := &cobra.Command{
		Use:   "load <path>",
		Short: "Load a file or directory tree into CacheFS memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if replication < 1 {
				return fmt.Errorf("replication must be at least 1, got %d", replication)
			}
			if activeJobs < 1 {
				return fmt.Errorf("active-jobs must be at least 1, got %d", activeJobs)
			}
			settings, err := config.LoadSettings()
			if err != nil {
				return err
			}
			fs := metastore.NewClient(settings.AuthToken, settings.MasterURL)
			pool := dispatch.NewPool(activeJobs, func() (*jobmaster.Client, error) {
				return jobmaster.Dial(settings.AuthToken, settings.JobMasterURL)
			})
			loader := dispatch.NewLoader(fs, pool, cmd.OutOrStdout())
			return loader.Load(cmd.Context(), args[0], replication)
		},
	}
	cmd.Flags().IntVar(&replication, "replication", defaultReplication, "number of block replicas of each loaded file")
	cmd.Flags().IntVar(&activeJobs, "active-jobs", dispatch.DefaultCapacity, "maximum number of active outgoing jobs")
	return cmd
}

func main() {
	metrics.Namespace = "loadctl"
	metrics.Start("loadctl")

	// We make a lot of requests to the same two masters.
	if conns, err := config.GetInt("HTTP_MAX_IDLE_CONNS"); err == nil {
		config.SetMaxIdleConnsPerHost(conns)
	} else {
		config.SetMaxIdleConnsPerHost(100)
	}

	root := &cobra.Command{
		Use:          "loadctl",
		Short:        "Distribute work across a CacheFS cluster",
		SilenceUsage: true,
	}
	root.AddCommand(newLoadCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
