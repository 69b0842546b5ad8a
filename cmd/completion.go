package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xolan/mondo/internal/logging"
	"github.com/xolan/mondo/internal/service"
)

// completionCmd represents the completion command
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate a shell completion script for mondo.

Besides commands and flags, the scripts complete bucket list refs for
'bucket done', 'bucket edit' and 'bucket rm' once --pin is on the command
line, showing each dream's text next to its number.

Examples:
  source <(mondo completion bash)
  mondo completion zsh > "${fpath[1]}/_mondo"
  mondo completion fish > ~/.config/fish/completions/mondo.fish
  mondo completion powershell | Out-String | Invoke-Expression`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.ExactValidArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		generateCompletion(args[0])
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)

	for _, c := range []*cobra.Command{bucketDoneCmd, bucketEditCmd, bucketRmCmd} {
		c.ValidArgsFunction = completeBucketRefs
	}
	_ = bucketExportCmd.RegisterFlagCompletionFunc("format",
		cobra.FixedCompletions([]string{service.FormatJSON, service.FormatYAML}, cobra.ShellCompDirectiveNoFileComp))
}

// generateCompletion generates the appropriate completion script based on shell type
func generateCompletion(shell string) {
	var err error

	switch shell {
	case "bash":
		err = rootCmd.GenBashCompletionV2(deps.Stdout, true)
	case "zsh":
		err = rootCmd.GenZshCompletion(deps.Stdout)
	case "fish":
		err = rootCmd.GenFishCompletion(deps.Stdout, true)
	case "powershell":
		err = rootCmd.GenPowerShellCompletionWithDesc(deps.Stdout)
	default:
		fail(fmt.Sprintf("Unsupported shell '%s'", shell), nil, "Supported shells: bash, zsh, fish, powershell")
		return
	}

	if err != nil {
		fail(fmt.Sprintf("Failed to generate %s completion", shell), err, "")
	}
}

// completeBucketRefs offers the list indexes for the first argument of the
// bucket item commands. It needs --pin and never prompts; without it, or on
// any error, nothing is offered.
func completeBucketRefs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 || pinFlag == "" {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	items, err := refCandidates(ctx, pinFlag)
	if err != nil {
		cobra.CompDebugln(fmt.Sprintf("bucket refs: %v", err), false)
		return nil, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveError
	}

	var out []string
	for i, content := range items {
		ref := strconv.Itoa(i + 1)
		if strings.HasPrefix(ref, toComplete) {
			out = append(out, ref+"\t"+content)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveKeepOrder
}

// refCandidates returns the content of each item in list order.
func refCandidates(ctx context.Context, pin string) ([]string, error) {
	configPath, cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, err
	}
	services, err := deps.OpenServices(ctx, configPath, cfg, logging.Discard())
	if err != nil {
		return nil, err
	}
	defer services.Close()

	if err := services.Bucket.Unlock(ctx, services.Security, pin); err != nil {
		return nil, err
	}
	defer services.Bucket.Lock()

	result, err := services.Bucket.List(ctx)
	if err != nil {
		return nil, err
	}
	contents := make([]string, len(result.Items))
	for i, item := range result.Items {
		contents[i] = item.Content
	}
	return contents, nil
}
