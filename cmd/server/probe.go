package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/RichardoC/lms-chat/internal/llm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var probeCmd = &cobra.Command{
	Use:   "probe [prompt]",
	Short: "Send one prompt to the configured backend and print the reply",
	Long: `Checks that the configured inference backend answers.

Without a prompt a short fixed question is sent.`,
	RunE: runProbe,
}

const probePrompt = "In one sentence, what can a Canvas LMS assistant help a teacher with?"

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	prompt := probePrompt
	if len(args) > 0 {
		prompt = strings.Join(args, " ")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.LLM.Timeout)
	defer cancel()

	backend, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM backend: %w", err)
	}
	completion, err := backend.Generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		logger.Error("failed to generate completion",
			zap.String("inference_system", backend.Name()),
			zap.Error(err))
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), completion.Text)
	logger.Info("probe finished",
		zap.String("inference_system", completion.Backend),
		zap.String("model", completion.Model),
		zap.Int("tokens", completion.Usage.Total()))
	return nil
}
