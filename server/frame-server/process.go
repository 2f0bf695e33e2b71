package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/yeti47/framesight/server/core/classification"
	"github.com/yeti47/framesight/server/frame-server/uploads"
)

var processCmd = &cobra.Command{
	Use:   "process <video>",
	Short: "Run a local video through the pipeline once",
	Long: `Copies the video into the upload directory, extracts frames, classifies them and
prints the classifier's items as JSON. The original file is left untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

var classifyCmd = &cobra.Command{
	Use:   "classify <image>...",
	Short: "Classify local images once",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	stored, err := a.store.SaveLocalFile(args[0])
	if err != nil {
		return err
	}

	result, err := a.orchestrator.ProcessVideo(cmd.Context(), stored.Path, cfg.FramesDir())
	if err != nil {
		return err
	}

	return printResult(cmd.OutOrStdout(), result)
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	stored := make([]*uploads.StoredFile, 0, len(args))
	paths := make([]string, 0, len(args))
	for _, arg := range args {
		file, err := a.store.SaveLocalFile(arg)
		if err != nil {
			a.store.Remove(stored)
			return err
		}
		stored = append(stored, file)
		paths = append(paths, file.Path)
	}

	result, err := a.orchestrator.ProcessImages(cmd.Context(), paths)
	if err != nil {
		return err
	}

	return printResult(cmd.OutOrStdout(), result)
}

func printResult(w io.Writer, result *classification.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result.Payload()); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
