package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/Conveyor/internal/steps"
)

// NewGraphCmd создаёт команду вывода дерева pipeline.
func NewGraphCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "graph FILE",
		Short: "Print the pipeline as a tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			p, _, err := loadPipeline(args[0], slog.Default())
			if err != nil {
				return err
			}

			if out.JSONMode() {
				out.JSON(map[string]string{"pipeline": p.Name(), "view": p.Visualize()})
				return nil
			}
			out.Text(p.Visualize())
			return nil
		},
	}
}

// validationReport — результат команды validate.
type validationReport struct {
	Pipeline    string   `json:"pipeline"`
	Nodes       int      `json:"nodes"`
	StartNode   string   `json:"start_node"`
	Cycle       []string `json:"cycle,omitempty"`
	Unreachable []string `json:"unreachable,omitempty"`
}

// NewValidateCmd создаёт команду проверки файла определения.
//
// Ошибки структуры (неизвестные узлы, типы шагов, конфиг) — фатальные.
// Циклы и недостижимые узлы — только предупреждения: обход их допускает.
// С --strict цикл становится ошибкой.
func NewValidateCmd(outputFn func() *Output) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a pipeline definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			p, _, err := loadPipeline(args[0], slog.Default())
			if err != nil {
				return err
			}
			if err := p.Validate(); err != nil {
				return err
			}
			if strict {
				if err := p.CheckAcyclic(); err != nil {
					return err
				}
			}

			report := validationReport{
				Pipeline:    p.Name(),
				Nodes:       p.Size(),
				StartNode:   p.StartNode(),
				Cycle:       p.FindCycle(),
				Unreachable: p.Unreachable(),
			}

			if out.JSONMode() {
				out.JSON(report)
				return nil
			}

			if len(report.Cycle) > 0 {
				out.Warn("cycle detected: " + strings.Join(report.Cycle, " -> "))
			}
			if len(report.Unreachable) > 0 {
				out.Warn("unreachable from start: " + strings.Join(report.Unreachable, ", "))
			}
			out.Print(
				[]string{"PIPELINE", "NODES", "START"},
				[][]string{{report.Pipeline, strconv.Itoa(report.Nodes), report.StartNode}},
				report,
			)
			out.Success("Definition is valid")
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Treat cycles as errors")

	return cmd
}

// NewExportCmd создаёт команду экспорта топологии.
func NewExportCmd(outputFn func() *Output) *cobra.Command {
	var format string
	var outPath string

	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Export the pipeline topology as JSON or YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			p, _, err := loadPipeline(args[0], slog.Default())
			if err != nil {
				return err
			}

			f, err := exportFormat(format, outPath)
			if err != nil {
				return err
			}

			if outPath == "" {
				if f == steps.FormatYAML {
					return p.WriteYAML(cmd.OutOrStdout())
				}
				return p.WriteJSON(cmd.OutOrStdout())
			}

			if f == steps.FormatJSON {
				if err := p.SaveJSON(outPath); err != nil {
					return err
				}
			} else {
				file, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create %s: %w", outPath, err)
				}
				if err := p.WriteYAML(file); err != nil {
					file.Close()
					return err
				}
				if err := file.Close(); err != nil {
					return fmt.Errorf("close %s: %w", outPath, err)
				}
			}

			out.Success(fmt.Sprintf("Definition exported: %s", outPath))
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "Output format: json or yaml (default from -o extension, else json)")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write to file instead of stdout")

	return cmd
}

// exportFormat выбирает формат: явный флаг, затем расширение файла, затем JSON.
func exportFormat(format, path string) (steps.Format, error) {
	switch strings.ToLower(format) {
	case "json":
		return steps.FormatJSON, nil
	case "yaml", "yml":
		return steps.FormatYAML, nil
	case "":
		if path == "" {
			return steps.FormatJSON, nil
		}
		return steps.FormatFromPath(path)
	default:
		return "", fmt.Errorf("unsupported format %q, expected json or yaml", format)
	}
}
