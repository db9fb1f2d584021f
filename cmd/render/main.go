package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"comicframe/internal/plugin"
	"comicframe/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:   "render",
	Short: "Render one random xkcd comic for an e-ink display",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("transformer") {
			cfg.Render.Transformer, _ = cmd.Flags().GetString("transformer")
		}
		if cmd.Flags().Changed("width") {
			cfg.Display.Width, _ = cmd.Flags().GetInt("width")
		}
		if cmd.Flags().Changed("height") {
			cfg.Display.Height, _ = cmd.Flags().GetInt("height")
		}
		if cmd.Flags().Changed("padding") {
			cfg.Display.Padding, _ = cmd.Flags().GetInt("padding")
		}
		if cmd.Flags().Changed("background") {
			cfg.Display.Background, _ = cmd.Flags().GetString("background")
		}
		if noTitle, _ := cmd.Flags().GetBool("no-title"); noTitle {
			cfg.Display.ShowTitle = false
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid flags: %w", err)
		}

		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		gen := plugin.New(ctx, cfg)
		settings, device := plugin.SettingsFromConfig(cfg)

		frame, err := gen.GenerateFrame(ctx, settings, device)
		if err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("out")
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return err
		}
		if err := imaging.Save(frame.Image, out); err != nil {
			return fmt.Errorf("save %s: %w", out, err)
		}

		log.Printf("rendered comic #%d %q to %s after %d attempts",
			frame.Record.ComicID, frame.Record.Title, out, frame.Record.Attempts)
		return nil
	},
}

func init() {
	rootCmd.Flags().StringP("config", "c", "", "path to config.yaml")
	rootCmd.Flags().StringP("out", "o", "display.png", "output image path")
	rootCmd.Flags().String("transformer", "imaging", "image transformer: imaging or ffmpeg")
	rootCmd.Flags().Int("width", 800, "display width in pixels")
	rootCmd.Flags().Int("height", 480, "display height in pixels")
	rootCmd.Flags().Int("padding", 10, "margin around the comic in pixels")
	rootCmd.Flags().String("background", "white", "background color name or #rrggbb")
	rootCmd.Flags().Bool("no-title", false, "omit the comic title")
	rootCmd.Flags().Duration("timeout", 2*time.Minute, "overall deadline for selection and rendering")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
