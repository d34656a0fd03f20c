package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/clipr/internal/config"
	"github.com/tanq16/clipr/internal/preview"
	"github.com/tanq16/clipr/internal/utils"
)

var (
	debug      bool
	configPath string
	cfg        config.Config
)

var ClipVersion = "dev"

var rootCmd = &cobra.Command{
	Use:   "clipr",
	Short: "Fetch, trim, re-encode and share video clips with yt-dlp and ffmpeg",
	Long: `clipr drives yt-dlp and ffmpeg to download videos or audio, trim and
volume-adjust them, extract preview frames and upload the result.`,
	Version:       ClipVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		utils.InitLogger(debug)
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		if removed, err := preview.CleanOrphans("", utils.OrphanMaxAge); err != nil {
			log.Debug().Str("op", "cmd/root").Err(err).Msg("orphan cleanup failed")
		} else if removed > 0 {
			log.Debug().Str("op", "cmd/root").Msgf("removed %d stale preview workspaces", removed)
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/clipr/config.yaml)")

	rootCmd.AddCommand(newDownloadCmd())
	rootCmd.AddCommand(newInfoCmd())
	rootCmd.AddCommand(newPreviewCmd())
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newCleanCmd())
	rootCmd.AddCommand(newBatchCmd())
}
