package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/yeti47/framesight/client/frame-client/client"
)

var (
	uploadServer  string
	uploadTimeout time.Duration
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Send files to a running frame server",
	Long: `Uploads a single video to POST /video, or one or more images to POST /image,
and prints the returned items as JSON.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadServer, "server", "http://localhost:7810", "frame server base URL")
	uploadCmd.Flags().DurationVar(&uploadTimeout, "timeout", 10*time.Minute, "request timeout")
}

func runUpload(cmd *cobra.Command, args []string) error {
	frameClient := client.NewFrameServerClient(uploadServer, uploadTimeout)

	var (
		response *client.ProcessResponse
		err      error
	)
	if len(args) == 1 && isVideoName(args[0]) {
		response, err = frameClient.UploadVideo(cmd.Context(), args[0])
	} else {
		response, err = frameClient.UploadImages(cmd.Context(), args)
	}
	if err != nil {
		if client.IsRecoverableUploadError(err) {
			return fmt.Errorf("%w (the server may succeed if retried later)", err)
		}
		return err
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response.Images)
}

func isVideoName(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".mov", ".avi", ".mkv", ".webm", ".flv", ".wmv", ".mpg", ".mpeg", ".ts", ".m4v":
		return true
	}
	return false
}
