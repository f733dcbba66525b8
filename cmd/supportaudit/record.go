package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fentz26/supportaudit/internal/extract"
)

var (
	recordType   string
	recordResult string
)

var recordCmd = &cobra.Command{
	Use:   "record <source>",
	Short: "Log an already computed scoring response for a source",
	Long:  `Reads a scoring service reply (fenced or plain JSON) from a file or stdin, extracts the result and logs it under <source>, replacing any earlier audit.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runRecord,
}

func init() {
	recordCmd.Flags().StringVar(&recordType, "type", "chat", "Audit type")
	recordCmd.Flags().StringVar(&recordResult, "result", "-", "Scoring reply file, or - for stdin")
}

func runRecord(cmd *cobra.Command, args []string) error {
	raw, err := readInput(cmd.InOrStdin(), recordResult)
	if err != nil {
		return err
	}

	result, err := extract.Extract(string(raw))
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.ledger.LogAudit(cmd.Context(), args[0], recordType, result)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	return enc.Encode(map[string]any{
		"source_name": args[0],
		"status":      status,
		"score":       result.Score,
	})
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
