package cli

import (
	"os"
	"strings"

	"github.com/guiyumin/urduscribe/internal/core/ai/transcriber"
	"github.com/guiyumin/urduscribe/internal/core/media"
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for urduscribe.

Bash:
  # Add to ~/.bashrc:
  source <(urduscribe completion bash)

  # Or install to system:
  urduscribe completion bash > /etc/bash_completion.d/urduscribe

Zsh:
  # Add to ~/.zshrc:
  source <(urduscribe completion zsh)

  # Or install to fpath:
  urduscribe completion zsh > "${fpath[1]}/_urduscribe"

Fish:
  urduscribe completion fish > ~/.config/fish/completions/urduscribe.fish

PowerShell:
  urduscribe completion powershell >> $PROFILE
`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(os.Stdout)
		default:
			return cmd.Help()
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)

	// only offer files the normalizer accepts
	transcribeCmd.ValidArgsFunction = completeMediaFile
	modelsDownloadCmd.ValidArgsFunction = completeModelTier
	modelsRmCmd.ValidArgsFunction = completeModelTier
	configGetCmd.ValidArgsFunction = completeConfigKey
	configSetCmd.ValidArgsFunction = completeConfigKey
	configUnsetCmd.ValidArgsFunction = completeConfigKey
}

func completeMediaFile(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	exts := make([]string, len(media.SupportedExtensions))
	for i, ext := range media.SupportedExtensions {
		exts[i] = strings.TrimPrefix(ext, ".")
	}
	return exts, cobra.ShellCompDirectiveFilterFileExt
}

func completeModelTier(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var tiers []string
	for _, m := range transcriber.ASRModels {
		if strings.HasPrefix(m.Name, toComplete) {
			tiers = append(tiers, m.Name+"\t"+m.Description)
		}
	}
	return tiers, cobra.ShellCompDirectiveNoFileComp
}

func completeConfigKey(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var keys []string
	for _, key := range configKeyNames() {
		if strings.HasPrefix(key, toComplete) {
			keys = append(keys, key)
		}
	}
	return keys, cobra.ShellCompDirectiveNoFileComp
}

func fixedCompletion(values ...string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return values, cobra.ShellCompDirectiveNoFileComp
	}
}
