package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dukex/leadflow/pkg/config"
	"github.com/dukex/leadflow/pkg/log"
	"github.com/dukex/leadflow/pkg/notify"
	"github.com/dukex/leadflow/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

var errMissingDefinitionFile = errors.New("a workflow definition file is required")

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Validate a workflow definition file without starting the server",
		ArgsUsage: "<workflow.yaml|workflow.json>",
		Action: func(_ context.Context, command *cli.Command) error {
			path := command.Args().First()
			if path == "" {
				return errMissingDefinitionFile
			}

			logger := log.WithModule("validate")

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			return validateDefinition(logger, data, command.Root().Writer)
		},
	}
}

// validateDefinition compiles a workflow file against the built-in step kinds and
// reports its execution path.
func validateDefinition(logger *slog.Logger, data []byte, out io.Writer) error {
	def, err := config.ParseWorkflow(data)
	if err != nil {
		return err
	}

	registry := workflow.NewDefaultRegistry(logger, nil, notify.NewLogMailer(logger), notify.NewLogMessenger(logger), nil)

	graph, err := workflow.NewEngine(logger, registry, nil).Validate(def)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "entry: %s\n", graph.Entry())
	_, _ = fmt.Fprintf(out, "path: %s\n", strings.Join(graph.Path(), " -> "))

	if unreachable := graph.Unreachable(); len(unreachable) > 0 {
		_, _ = fmt.Fprintf(out, "unreachable: %s\n", strings.Join(unreachable, ", "))
	}

	return nil
}
