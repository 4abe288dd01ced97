package main

import (
	"encoding/json"
	"fmt"

	"github.com/liliang-cn/fixdoc/internal/api/middleware"
	"github.com/liliang-cn/fixdoc/internal/domain"
	"github.com/liliang-cn/fixdoc/internal/service"
	"github.com/spf13/cobra"
)

var (
	askDeviceType string
	askBrand      string
	askModel      string
	askManuals    []string
	askJSON       bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a troubleshooting question from the indexed manuals",
	Long: `Answers one question and prints the cited passages. With the in-memory
vector index nothing survives between runs, so pass the manuals to search
with --manual; they are indexed before the question is asked.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askDeviceType, "device-type", "", "only search manuals for this device type")
	askCmd.Flags().StringVar(&askBrand, "brand", "", "only search manuals for this brand")
	askCmd.Flags().StringVar(&askModel, "model", "", "only search manuals for this model")
	askCmd.Flags().StringSliceVar(&askManuals, "manual", nil, "manual to index first (uses --device-type and --brand)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the response as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	return withEngine(cmd.Context(), func(engine *service.Engine) error {
		ctx := cmd.Context()

		if len(askManuals) > 0 {
			ingestDeviceType, ingestBrand, ingestModel = askDeviceType, askBrand, askModel
			docs, err := ingestFiles(ctx, engine, middleware.LocalAccount, askManuals)
			if err != nil {
				return err
			}
			for _, doc := range docs {
				if doc.Status != domain.DocumentStatusIndexed {
					cmd.PrintErrf("warning: %s was not indexed: %s\n", doc.Filename, doc.ErrorMessage)
				}
			}
		}

		resp, err := engine.Chat.Chat(ctx, middleware.LocalAccount, &domain.ChatRequest{
			Query:      args[0],
			DeviceType: askDeviceType,
			Brand:      askBrand,
			Model:      askModel,
		})
		if err != nil {
			return fmt.Errorf("ask failed: %w", err)
		}

		if askJSON {
			data, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal response: %w", err)
			}
			cmd.Println(string(data))
			return nil
		}

		cmd.Println(resp.Answer)
		if len(resp.Sources) > 0 {
			cmd.Println()
			cmd.Println("Sources:")
			for i, src := range resp.Sources {
				page := "N/A"
				if src.PageNumber != nil {
					page = fmt.Sprint(*src.PageNumber)
				}
				cmd.Printf("  [%d] %s (page %s, relevance %.3f)\n", i+1, src.SourceFile, page, src.RelevanceScore)
			}
		}
		return nil
	})
}
