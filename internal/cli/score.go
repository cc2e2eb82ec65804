package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"clinical-case-service/internal/app"
	"clinical-case-service/internal/domain"
	"github.com/spf13/cobra"
)

type scoreReport struct {
	Score      domain.ScoreBreakdown   `json:"score"`
	Indices    domain.SelectionIndices `json:"indices"`
	Assessment app.Assessment          `json:"assessment"`
	Problems   string                  `json:"problems,omitempty"`
}

// NewScoreCmd scores a selection offline against a case file.
func NewScoreCmd() *cobra.Command {
	var casePath, selectionsPath string
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score selections against a case definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			var def domain.CaseDefinition
			if err := readJSON(casePath, &def); err != nil {
				return err
			}
			var sel domain.Selections
			if err := readJSON(selectionsPath, &sel); err != nil {
				return err
			}

			report := scoreReport{
				Score:      app.Score(&def, sel),
				Indices:    app.ToIndices(&def, sel),
				Assessment: app.Assess(&def, sel),
			}
			if problems := def.Validate(); problems != nil {
				report.Problems = problems.Error()
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().StringVar(&casePath, "case", "", "case definition JSON")
	cmd.Flags().StringVar(&selectionsPath, "selections", "", "selections JSON ({testIds, diagnosisId, treatmentIds})")
	_ = cmd.MarkFlagRequired("case")
	_ = cmd.MarkFlagRequired("selections")
	return cmd
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
