package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yangwenmai/reviewer/internal/logger"
	"github.com/yangwenmai/reviewer/internal/model"
	"github.com/yangwenmai/reviewer/internal/service"
)

func newGenerateCommand(configPath *string) *cobra.Command {
	var (
		feature string
		userID  string
		file    string
		text    string
		url     string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one reviewer and print it as JSON",
		Example: `  reviewer generate --feature terms --text "TCP: reliable transport protocol"
  reviewer generate --feature summarize --file lecture.pdf --user alice`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := model.ParseFeature(feature)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.LogMode)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer log.Sync()

			if userID == "" {
				userID = cfg.DevUserID
			}
			if userID == "" {
				return fmt.Errorf("--user is required when DEV_USER_ID is not set")
			}

			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.service.Generate(cmd.Context(), service.Request{
				UserID:   userID,
				Feature:  f,
				Markdown: text,
				FilePath: file,
				URL:      url,
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	cmd.Flags().StringVarP(&feature, "feature", "f", "", "feature type: acronym, terms, summarize or explain")
	cmd.Flags().StringVarP(&userID, "user", "u", "", "owner of the generated reviewer (defaults to DEV_USER_ID)")
	cmd.Flags().StringVar(&file, "file", "", "source document (pdf, pptx, docx, html, md, txt)")
	cmd.Flags().StringVar(&text, "text", "", "source text")
	cmd.Flags().StringVar(&url, "url", "", "source web page")
	_ = cmd.MarkFlagRequired("feature")
	return cmd
}
