package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/sheet-transcriber/internal/schemas"
	embedded "github.com/jonathan/sheet-transcriber/schemas"
)

var (
	validateSchema string
	validateJSON   string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a JSON document against an API schema",
	Long:  "Validates a JSON file against one of the embedded API schemas (" + strings.Join(embedded.Names(), ", ") + ").",
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&validateSchema, "schema", "s", "", "Schema name (required)")
	validateCmd.Flags().StringVarP(&validateJSON, "json", "j", "", "Path to JSON file (required)")

	if err := validateCmd.MarkFlagRequired("schema"); err != nil {
		panic(fmt.Sprintf("failed to mark schema flag as required: %v", err))
	}
	if err := validateCmd.MarkFlagRequired("json"); err != nil {
		panic(fmt.Sprintf("failed to mark json flag as required: %v", err))
	}

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	doc, err := os.ReadFile(validateJSON)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", validateJSON, err)
	}

	err = schemas.Validate(validateSchema, doc)
	var verr *schemas.ValidationError
	if errors.As(err, &verr) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Validation failed")
		for _, fe := range verr.Errors {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", fe.Field, fe.Message)
		}
		return err
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Validation passed")
	return nil
}
