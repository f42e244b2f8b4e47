package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/ios-scale/internal/core"
	"github.com/valter-silva-au/ios-scale/pkg/models"
)

// completeSessionIDs returns a completion function listing session ids,
// restricted to trashed or active sessions when requested.
func completeSessionIDs(trashed bool) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if Library == nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		sessions := Library.List(models.SessionQuery{ActiveOnly: !trashed, TrashedOnly: trashed})
		var ids []string
		for _, s := range sessions {
			if toComplete == "" || strings.HasPrefix(s.ID, toComplete) {
				ids = append(ids, s.ID+"\t"+core.DisplayName(s.Modality)+", "+s.CreatedAt.Format("2006-01-02 15:04"))
			}
		}
		return ids, cobra.ShellCompDirectiveNoFileComp
	}
}

// completeAnySessionID completes active and trashed session ids.
func completeAnySessionID(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	active, _ := completeSessionIDs(false)(nil, nil, toComplete)
	trashed, _ := completeSessionIDs(true)(nil, nil, toComplete)
	return append(active, trashed...), cobra.ShellCompDirectiveNoFileComp
}

func completeModalities(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	out := make([]string, len(models.AllModalities))
	for i, m := range models.AllModalities {
		out[i] = string(m) + "\t" + core.DisplayName(m)
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func completeFormats(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{
		"csv\tComma-separated values",
		"tsv\tTab-separated values",
		"json\tJSON bundle with metadata header",
	}, cobra.ShellCompDirectiveNoFileComp
}

func completeSortOrders(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{
		string(models.SortNewestFirst) + "\tNewest first",
		string(models.SortOldestFirst) + "\tOldest first",
		string(models.SortMostMeasurementsFirst) + "\tMost measurements first",
		string(models.SortModalityName) + "\tBy modality name",
	}, cobra.ShellCompDirectiveNoFileComp
}

func completeSettingKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return core.SettingKeys(), cobra.ShellCompDirectiveNoFileComp
}

// registerQueryFlagCompletions registers completion for the shared session
// query flags.
func registerQueryFlagCompletions(cmd *cobra.Command) {
	_ = cmd.RegisterFlagCompletionFunc("modality", completeModalities)
	if cmd.Flags().Lookup("sort") != nil {
		_ = cmd.RegisterFlagCompletionFunc("sort", completeSortOrders)
	}
}
