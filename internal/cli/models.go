package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/guiyumin/urduscribe/internal/core/ai/transcriber"
	"github.com/guiyumin/urduscribe/internal/core/config"
	"github.com/guiyumin/urduscribe/internal/core/i18n"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var modelsPrecision string

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List and manage local whisper models",
	Long: `List the whisper model tiers and which of them are downloaded.

Each tier comes in two precisions: float16 weights for CUDA devices and
int8-quantized weights for CPUs. Without --precision the one matching
this machine is used.

Examples:
  urduscribe models
  urduscribe models download small
  urduscribe models download large-v3 --precision float16
  urduscribe models rm medium`,
	Args: cobra.NoArgs,
	RunE: runModels,
}

var modelsDownloadCmd = &cobra.Command{
	Use:   "download <tier>",
	Short: "Download a whisper model",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsDownload,
}

var modelsRmCmd = &cobra.Command{
	Use:   "rm <tier>",
	Short: "Remove a downloaded whisper model",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsRm,
}

func init() {
	modelsCmd.PersistentFlags().StringVar(&modelsPrecision, "precision", "", "model precision: int8 or float16 (default: by device)")
	modelsCmd.RegisterFlagCompletionFunc("precision", fixedCompletion(transcriber.PrecisionInt8, transcriber.PrecisionFloat16))

	modelsCmd.AddCommand(modelsDownloadCmd)
	modelsCmd.AddCommand(modelsRmCmd)
	rootCmd.AddCommand(modelsCmd)
}

// modelTarget resolves the model manager and precision for a models command.
func modelTarget() (*transcriber.ModelManager, string, *i18n.Translations, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", nil, err
	}
	opts, err := transcriber.Resolve(cfg.LocalASR)
	if err != nil {
		return nil, "", nil, err
	}

	precision := opts.Precision
	switch modelsPrecision {
	case "":
	case transcriber.PrecisionInt8, transcriber.PrecisionFloat16:
		precision = modelsPrecision
	default:
		return nil, "", nil, fmt.Errorf("unknown precision %q (want int8 or float16)", modelsPrecision)
	}

	return transcriber.NewModelManager(modelsDir(cfg)), precision, i18n.T(cfg.Language), nil
}

func modelsDir(cfg *config.Config) string {
	if cfg.LocalASR.ModelsDir != "" {
		return cfg.LocalASR.ModelsDir
	}
	dir, err := transcriber.DefaultModelsDir()
	if err != nil {
		return "models"
	}
	return dir
}

func runModels(cmd *cobra.Command, args []string) error {
	mm, precision, t, err := modelTarget()
	if err != nil {
		return err
	}

	nameStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // green
	sizeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray
	descStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	hintStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // orange

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Whisper models (%s):\n\n", precision)
	for _, m := range transcriber.ASRModels {
		status := t.CLI.NotDownloaded
		if mm.IsDownloaded(m.Name, precision) {
			status = t.CLI.Downloaded
		}
		fmt.Fprintf(out, "  %s %s  %s  [%s]\n",
			nameStyle.Render(fmt.Sprintf("%-10s", m.Name)),
			sizeStyle.Render(fmt.Sprintf("%8s", m.Size)),
			descStyle.Render(fmt.Sprintf("%-26s", m.Description)),
			status,
		)
	}
	fmt.Fprintf(out, "\nModels directory: %s\n", mm.Dir())
	fmt.Fprintf(out, "  %s\n", hintStyle.Render("urduscribe models download <tier>"))
	return nil
}

func runModelsDownload(cmd *cobra.Command, args []string) error {
	tier := args[0]
	model := transcriber.GetModel(tier)
	if model == nil {
		return unknownTier(tier)
	}

	mm, precision, t, err := modelTarget()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if mm.IsDownloaded(tier, precision) {
		fmt.Fprintf(out, "Model '%s' (%s) is already downloaded.\n", tier, precision)
		fmt.Fprintf(out, "Location: %s\n", mm.ModelPath(tier, precision))
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(out, "\n%s %s (%s, %s)\n", t.CLI.Downloading, model.Name, precision, transcriber.ModelFileName(tier, precision))
	fmt.Fprintf(out, "Source: %s\n", transcriber.ModelURL(tier, precision))

	var path string
	if term.IsTerminal(int(os.Stdout.Fd())) {
		path, err = runDownloadTUI(ctx, mm, tier, precision)
	} else {
		path, err = mm.Download(ctx, tier, precision, plainDownloadProgress(out))
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nDownload complete!\n")
	fmt.Fprintf(out, "Location: %s\n", path)
	return nil
}

func runModelsRm(cmd *cobra.Command, args []string) error {
	tier := args[0]
	if transcriber.GetModel(tier) == nil {
		return unknownTier(tier)
	}

	mm, precision, _, err := modelTarget()
	if err != nil {
		return err
	}
	if !mm.IsDownloaded(tier, precision) {
		return fmt.Errorf("model '%s' (%s) is not downloaded", tier, precision)
	}
	if err := mm.Remove(tier, precision); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed model: %s (%s)\n", tier, precision)
	return nil
}

func unknownTier(tier string) error {
	names := ""
	for _, m := range transcriber.ASRModels {
		names += " " + m.Name
	}
	return fmt.Errorf("unknown model '%s' (available:%s)", tier, names)
}
