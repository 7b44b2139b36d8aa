package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/litani-build/litani/internal/model"
)

// capabilities describes the fixed, version-independent facts a CI system
// driving litani needs up front: the closed outcome set, the recognized
// ci_stage values, and the default parallelism run-build picks when
// --parallel is not given (--parallel 0 means unbounded).
type capabilities struct {
	Outcomes        []model.Outcome `json:"outcomes"`
	CIStages        []model.CIStage `json:"ci_stages"`
	DefaultParallel int             `json:"default_parallel"`
}

func newPrintCapabilitiesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "print-capabilities",
		Short: "Print this build's fixed capabilities as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			caps := capabilities{
				Outcomes:        []model.Outcome{model.OutcomeSuccess, model.OutcomeFail, model.OutcomeFailIgnored},
				CIStages:        []model.CIStage{model.StageBuild, model.StageTest, model.StageReport},
				DefaultParallel: runtime.NumCPU(),
			}
			b, err := json.MarshalIndent(caps, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(b))
			return nil
		},
	}
}
