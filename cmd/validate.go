package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/smazurov/camhls/internal/config"
	"github.com/smazurov/camhls/internal/ffmpeg"
	"github.com/spf13/cobra"
)

// CreateValidateCmd creates the validate command.
func CreateValidateCmd() *cobra.Command {
	var camerasFile string
	var ffmpegPath string
	var outputDir string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the cameras file",
		Long: `Loads and validates the cameras file, then prints every camera's effective ` +
			`configuration and the ffmpeg command camhls would run for it. Credentials are masked.`,
		Args: cobra.NoArgs,
		Run: func(c *cobra.Command, _ []string) {
			if err := runValidate(c.OutOrStdout(), camerasFile, ffmpegPath, outputDir); err != nil {
				fmt.Fprintln(c.ErrOrStderr(), "error:", err)
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVar(&camerasFile, "cameras", "cameras.toml", "Path to cameras configuration file")
	cmd.Flags().StringVar(&ffmpegPath, "ffmpeg", ffmpeg.DefaultPath, "ffmpeg binary used in the printed commands")
	cmd.Flags().StringVar(&outputDir, "output-dir", "./hls", "HLS output directory used in the printed commands")

	return cmd
}

func runValidate(w io.Writer, path, ffmpegPath, outputDir string) error {
	file, err := config.LoadCameras(path)
	if err != nil {
		return err
	}
	cameras, err := file.ResolveAll()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s: %d camera(s) OK\n", path, len(cameras))
	for _, warning := range file.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	for i, cam := range cameras {
		fmt.Fprintf(w, "\n[%s] %s\n", cam.ID, cam.Name)

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "  transport\t%s\n", cam.Transport)
		fmt.Fprintf(tw, "  video\t%s (fps cap %d, height cap %d, threads %d)\n",
			cam.VideoMode, cam.FrameRateCap, cam.ResolutionCap, cam.ThreadCap)
		fmt.Fprintf(tw, "  audio\t%s (stream %d, %s)\n", cam.AudioMode, cam.AudioStream, cam.AudioEncoding)
		fmt.Fprintf(tw, "  decoder\t%s\n", cam.Decoder)
		fmt.Fprintf(tw, "  error detection\t%s\n", cam.ErrorDetection)
		fmt.Fprintf(tw, "  segments\t%d x %ds\n", cam.SegmentRetention, cam.SegmentSeconds)
		if err := tw.Flush(); err != nil {
			return err
		}

		for _, warning := range config.Lint(file.Cameras[i], file.Defaults) {
			fmt.Fprintf(w, "  warning: %s\n", warning)
		}

		command := ffmpeg.BuildHLSCommand(cam, filepath.Join(outputDir, cam.ID), ffmpeg.BuildOptions{FFmpegPath: ffmpegPath})
		fmt.Fprintf(w, "  command: %s\n", command.String())
	}
	return nil
}
