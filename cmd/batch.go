package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/clipr/internal/lifecycle"
	"github.com/tanq16/clipr/internal/output"
	"github.com/tanq16/clipr/internal/session"
	"gopkg.in/yaml.v3"
)

type BatchEntry struct {
	URL     string   `yaml:"url"`
	Quality string   `yaml:"quality,omitempty"`
	Start   string   `yaml:"start,omitempty"`
	End     string   `yaml:"end,omitempty"`
	Volume  *float64 `yaml:"volume,omitempty"`
	Name    string   `yaml:"name,omitempty"`
	Output  string   `yaml:"output,omitempty"`
	Upload  bool     `yaml:"upload,omitempty"`
}

// flags overlays the entry on the command-line defaults.
func (e BatchEntry) flags(def downloadFlags) downloadFlags {
	f := def
	if e.Quality != "" {
		f.quality = e.Quality
	}
	if e.Start != "" || e.End != "" {
		f.start, f.end = e.Start, e.End
	}
	if e.Volume != nil {
		f.volume = *e.Volume
		f.volumeSet = true
	}
	if e.Name != "" {
		f.name = e.Name
	}
	if e.Output != "" {
		f.outputDir = e.Output
	}
	f.upload = f.upload || e.Upload
	return f
}

func parseBatch(data []byte) ([]BatchEntry, error) {
	var entries []BatchEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("error parsing batch file: %v", err)
	}
	valid := entries[:0]
	for i, e := range entries {
		if e.URL == "" {
			log.Warn().Str("op", "cmd/batch").Msgf("entry %d has no url, skipping", i+1)
			continue
		}
		valid = append(valid, e)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("no valid entries found in the batch file")
	}
	return valid, nil
}

func newBatchCmd() *cobra.Command {
	var defaults downloadFlags
	cmd := &cobra.Command{
		Use:   "batch [YAML_FILE] [OPTIONS]",
		Short: "Run several downloads listed in a YAML file, one after another",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults.volumeSet = cmd.Flags().Changed("volume")
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("error reading batch file: %v", err)
			}
			entries, err := parseBatch(data)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a := newApp()
			defer a.close()
			controller := a.controller()
			manager, stopDisplay := startDisplay()
			defer stopDisplay()

			failed := 0
			for _, entry := range entries {
				if ctx.Err() != nil {
					break
				}
				if !runBatchEntry(ctx, a, manager, controller, entry, defaults) {
					failed++
				}
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d batch entries failed", failed, len(entries))
			}
			return nil
		},
	}
	addDownloadFlags(cmd, &defaults)
	return cmd
}

func runBatchEntry(ctx context.Context, a *app, m *output.Manager, controller *lifecycle.Controller, entry BatchEntry, defaults downloadFlags) bool {
	f := entry.flags(defaults)
	req, err := f.request(entry.URL)
	if err != nil {
		m.ReportError(m.Register(entry.URL), err)
		return false
	}
	deps := session.Deps{Downloader: controller}
	if f.upload {
		u, err := a.uploader(ctx, f.target)
		if err != nil {
			m.ReportError(m.Register(entry.URL), err)
			return false
		}
		deps.Uploader = u
		if store, err := a.history(); err != nil {
			log.Warn().Str("op", "cmd/batch").Err(err).Msg("upload history unavailable")
		} else {
			deps.History = store
		}
	}
	out, err := runSession(ctx, a, m, req, deps, f.upload)
	if err != nil {
		m.ReportError(m.Register(entry.URL), err)
		return false
	}
	return out.State == lifecycle.Completed
}
