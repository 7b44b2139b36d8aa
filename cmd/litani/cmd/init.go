package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/litani-build/litani/internal/cachestore"
	"github.com/litani-build/litani/internal/model"
	"github.com/litani-build/litani/internal/projectconfig"
	"github.com/litani-build/litani/internal/rundir"
)

var (
	initProject      string
	initVersionMajor int
	initVersionMinor int
	initVersionPatch int
	initPools        []string
	initConfigFile   string
)

func newInitCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "init",
		Short: "Start a new run directory and Cache Store",
		Long: `Creates a fresh run directory under --output-prefix, seeds the Cache
Store with the declared pools, and points "litani/runs/latest" and the
process-wide pointer file at it. A subsequent command with no --run-id
operates against this run. Set LITANI_RUN_ID to override the generated
UUID, e.g. to pin a run's id to an external CI build number.`,
		Args: cobra.NoArgs,
		RunE: runInit,
	}
	c.Flags().StringVar(&initProject, "project", "", "project name recorded in the Cache Store (required)")
	c.Flags().IntVar(&initVersionMajor, "version-major", 1, "major version recorded in the Cache Store")
	c.Flags().IntVar(&initVersionMinor, "version-minor", 0, "minor version recorded in the Cache Store")
	c.Flags().IntVar(&initVersionPatch, "version-patch", 0, "patch version recorded in the Cache Store")
	c.Flags().StringSliceVar(&initPools, "pool", nil, `pool declaration "name=depth", repeatable`)
	c.Flags().StringVar(&initConfigFile, "config", ".litani.yml", "project defaults file (project name, pools); missing file is not an error")
	return c
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := projectconfig.Load(initConfigFile)
	if err != nil {
		return fmt.Errorf("init: load %s: %w", initConfigFile, err)
	}

	project := initProject
	if project == "" {
		project = cfg.Project
	}
	if project == "" {
		return fmt.Errorf("init: --project is required (or set project: in %s)", initConfigFile)
	}

	pools, err := parsePools(initPools)
	if err != nil {
		return err
	}
	if len(pools) == 0 {
		pools = cfg.ModelPools()
	}

	runID := os.Getenv("LITANI_RUN_ID")
	if runID == "" {
		runID = uuid.NewString()
	}
	layout := rundir.New(outputPrefix, runID)
	if err := layout.EnsureCreated(); err != nil {
		return fmt.Errorf("init: %w", err)
	}

	store := cachestore.New(layout)
	if _, err := store.Create(project, initVersionMajor, initVersionMinor, initVersionPatch, pools); err != nil {
		return fmt.Errorf("init: %w", err)
	}

	fmt.Println(layout.RunID)
	return nil
}

func parsePools(raw []string) ([]model.Pool, error) {
	pools := make([]model.Pool, 0, len(raw))
	for _, spec := range raw {
		name, depthStr, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --pool %q, expected name=depth", spec)
		}
		var depth int
		if _, err := fmt.Sscanf(depthStr, "%d", &depth); err != nil {
			return nil, fmt.Errorf("invalid --pool %q: depth must be an integer", spec)
		}
		if depth <= 0 {
			return nil, fmt.Errorf("invalid --pool %q: depth must be positive", spec)
		}
		pools = append(pools, model.Pool{Name: name, Depth: depth})
	}
	return pools, nil
}
