package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/modelgate/modelgate/types"
)

var (
	modelName    string
	modelVersion string
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Manage the model registry",
}

var modelRegisterCmd = &cobra.Command{
	Use:     "register <model-id>",
	Short:   "Register a model for governance tracking",
	Example: `  modelgate model register credit-model-1 --name "Credit Scoring" --version 2.1.0`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		model := types.Model{ID: args[0], Name: modelName, Version: modelVersion}
		if err := a.store.PutModel(model); err != nil {
			return err
		}
		registered, err := a.store.GetModel(args[0])
		if err != nil {
			return err
		}
		return printJSON(registered)
	},
}

var modelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered models",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		models, err := a.store.ListModels()
		if err != nil {
			return err
		}
		return printJSON(models)
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <model-id> <file>",
	Short: "Ingest prediction logs from a JSON-lines file",
	Long: `Read prediction logs from a JSON-lines file (one log per line) and
append them to the model's history in a single transaction. On any
failure nothing is persisted.

Each line holds: {"features": {...}, "score": 0.73, "timestamp": "..."}`,
	Example: `  modelgate ingest credit-model-1 predictions.jsonl`,
	Args:    cobra.ExactArgs(2),
	RunE:    runIngest,
}

func init() {
	rootCmd.AddCommand(modelCmd)
	rootCmd.AddCommand(ingestCmd)
	modelCmd.AddCommand(modelRegisterCmd)
	modelCmd.AddCommand(modelListCmd)

	modelRegisterCmd.Flags().StringVar(&modelName, "name", "", "Human-readable model name (required)")
	modelRegisterCmd.Flags().StringVar(&modelVersion, "version", "", "Model version")
	_ = modelRegisterCmd.MarkFlagRequired("name")
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	modelID := args[0]
	file, err := os.Open(args[1]) // #nosec G304 -- path is intentional user input
	if err != nil {
		return fmt.Errorf("failed to open logs file: %w", err)
	}
	defer file.Close()

	var logs []types.PredictionLog
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var log types.PredictionLog
		if err := json.Unmarshal(scanner.Bytes(), &log); err != nil {
			return fmt.Errorf("bad prediction log on line %d: %w", line, err)
		}
		log.ModelID = modelID
		logs = append(logs, log)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if err := a.store.AppendPredictionLogBatch(modelID, logs); err != nil {
		return err
	}

	fmt.Printf("ingested %d prediction logs for %s\n", len(logs), modelID)
	return nil
}
