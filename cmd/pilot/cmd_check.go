package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"foampilot/internal/normalize"
)

// checkCmd pre-validates a requirement without submitting anything.
var checkCmd = &cobra.Command{
	Use:   "check [requirement]",
	Short: "Pre-validate a requirement without submitting",
	Long: `Sends the requirement to the reasoning service's completeness check
and prints the verdict: missing parameters, suggested defaults and a
resubmittable request text with the defaults folded in.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheckCmd,
}

func runCheckCmd(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	text := strings.Join(args, " ")

	ctx, cancel := context.WithTimeout(context.Background(), httpTimeout)
	defer cancel()

	raw, err := newReasoner(cfg).Check(ctx, text)
	if err != nil {
		return err
	}

	check := normalize.ParseCheckResult(raw)
	if check.Passed {
		fmt.Println("✅ Request is complete enough to submit.")
		return nil
	}

	fmt.Println("More information needed.")
	if check.Summary != "" {
		fmt.Println()
		fmt.Println(check.Summary)
	}
	if len(check.Missing) > 0 {
		fmt.Println()
		fmt.Println("Missing:")
		for _, item := range check.Missing {
			fmt.Println("- " + item)
		}
	}
	if len(check.Defaults) > 0 {
		fmt.Println()
		fmt.Println("Suggested defaults:")
		for _, d := range check.Defaults {
			line := "- " + d.Name
			if d.Value != "" {
				line += "：" + d.Value
			}
			if d.Note != "" {
				line += "（" + d.Note + "）"
			}
			fmt.Println(line)
		}
	}

	applyText := check.ApplyText
	if applyText == "" {
		applyText = normalize.SynthesizeApplyText(text, check.Defaults)
	}
	if applyText != "" {
		fmt.Println()
		fmt.Println("Resubmit with defaults applied:")
		fmt.Println()
		fmt.Println(applyText)
	}

	return fmt.Errorf("request needs more information")
}
