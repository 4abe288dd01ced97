package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/liliang-cn/fixdoc/internal/api/middleware"
	"github.com/liliang-cn/fixdoc/internal/domain"
	"github.com/liliang-cn/fixdoc/internal/service"
	"github.com/spf13/cobra"
)

var (
	ingestDeviceType string
	ingestBrand      string
	ingestModel      string
	ingestAccount    string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Upload and index manuals from local files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDeviceType, "device-type", "", "device type of the manuals (required)")
	ingestCmd.Flags().StringVar(&ingestBrand, "brand", "", "brand of the manuals (required)")
	ingestCmd.Flags().StringVar(&ingestModel, "model", "", "device model")
	ingestCmd.Flags().StringVar(&ingestAccount, "account", middleware.LocalAccount, "account that owns the manuals")
	ingestCmd.MarkFlagRequired("device-type")
	ingestCmd.MarkFlagRequired("brand")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	return withEngine(cmd.Context(), func(engine *service.Engine) error {
		docs, err := ingestFiles(cmd.Context(), engine, ingestAccount, args)
		for _, doc := range docs {
			data, _ := json.Marshal(doc)
			cmd.Println(string(data))
		}
		return err
	})
}

// ingestFiles uploads each file and stops at the first upload that is rejected.
// Documents that fail processing are returned with their FAILED status.
func ingestFiles(ctx context.Context, engine *service.Engine, account string, paths []string) ([]*domain.ManualDocument, error) {
	var docs []*domain.ManualDocument
	for _, path := range paths {
		doc, err := ingestFile(ctx, engine, account, path)
		if err != nil {
			return docs, fmt.Errorf("%s: %w", path, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func ingestFile(ctx context.Context, engine *service.Engine, account, path string) (*domain.ManualDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.Errorf(domain.ErrValidation, "file does not exist")
		}
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	return engine.Ingest.Upload(ctx, account, domain.UploadRequest{
		Filename:   filepath.Base(path),
		DeviceType: ingestDeviceType,
		Brand:      ingestBrand,
		Model:      ingestModel,
		Size:       info.Size(),
	}, f)
}

// withEngine loads the config, builds the engine and runs fn with it
func withEngine(ctx context.Context, fn func(*service.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	engine, err := service.NewEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	return fn(engine)
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
