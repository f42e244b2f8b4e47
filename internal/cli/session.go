package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/ios-scale/internal/core"
	"github.com/valter-silva-au/ios-scale/internal/export"
	"github.com/valter-silva-au/ios-scale/pkg/models"
)

// queryFlags are the session selection flags shared by list, stats and
// export.
type queryFlags struct {
	modality string
	filter   string
	sort     string
	trashed  bool
}

func (f *queryFlags) register(cmd *cobra.Command, withSort bool) {
	cmd.Flags().StringVar(&f.modality, "modality", "", "Only sessions of this modality")
	cmd.Flags().StringVar(&f.filter, "filter", "", "Case-insensitive text matched against modality name and notes")
	cmd.Flags().BoolVar(&f.trashed, "trashed", false, "Select trashed sessions instead of active ones")
	if withSort {
		cmd.Flags().StringVar(&f.sort, "sort", string(models.SortNewestFirst), "Sort order: newest, oldest, most-measurements, modality")
	}
	registerQueryFlagCompletions(cmd)
}

func (f *queryFlags) query() (models.SessionQuery, error) {
	q := models.SessionQuery{
		ActiveOnly:  !f.trashed,
		TrashedOnly: f.trashed,
		TextFilter:  f.filter,
		Sort:        models.SortOrder(f.sort),
	}
	if f.modality != "" {
		m := models.Modality(f.modality)
		if !m.Valid() {
			return q, fmt.Errorf("unknown modality %q", f.modality)
		}
		q.Modality = m
	}
	switch q.Sort {
	case "", models.SortNewestFirst, models.SortOldestFirst, models.SortMostMeasurementsFirst, models.SortModalityName:
	default:
		return q, fmt.Errorf("unknown sort order %q", f.sort)
	}
	return q, nil
}

var (
	sessionListFlags queryFlags
	sessionListJSON  bool
	sessionShowJSON  bool
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Browse and manage captured sessions",
	Long: `Browse, annotate and manage captured sessions.

Trashed sessions keep their measurements and can be restored until they
are purged or the trash is emptied.`,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Library == nil {
			return fmt.Errorf("session library not initialized")
		}
		q, err := sessionListFlags.query()
		if err != nil {
			return err
		}

		sessions := Library.List(q)
		if sessionListJSON {
			rows := make([]sessionRow, len(sessions))
			for i, s := range sessions {
				rows[i] = newSessionRow(s)
			}
			return printJSON(rows)
		}

		if len(sessions) == 0 {
			if q.TrashedOnly {
				fmt.Println("Trash is empty.")
			} else {
				fmt.Println("No sessions found.")
			}
			return nil
		}

		sep := decimalSeparator()
		fmt.Printf("  %-36s %-28s %-16s %5s %7s  %s\n", "ID", "MODALITY", "CREATED", "N", "AVG", "NOTES")
		for _, s := range sessions {
			sum := core.Summarize(s.Measurements)
			avg := "-"
			if sum.Count > 0 {
				avg = core.FormatValue(sum.Average, 2, sep)
			}
			fmt.Printf("  %-36s %-28s %-16s %5d %7s  %s\n",
				s.ID, core.DisplayName(s.Modality), s.CreatedAt.Local().Format("2006-01-02 15:04"),
				sum.Count, avg, firstLine(s.Notes, 40))
		}
		fmt.Printf("\n%d session(s)\n", len(sessions))
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:               "show <session-id>",
	Short:             "Show a session with its measurements",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeAnySessionID,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Library == nil {
			return fmt.Errorf("session library not initialized")
		}
		s, err := Library.Get(args[0])
		if err != nil {
			return fmt.Errorf("getting session: %w", err)
		}
		if sessionShowJSON {
			return printJSON(export.NewBundle([]models.Session{s}, export.Options{IncludeMetadata: true}).Sessions[0])
		}

		sep := decimalSeparator()
		desc, _ := core.Descriptor(s.Modality)
		fmt.Printf("Session:   %s\n", s.ID)
		fmt.Printf("Modality:  %s (%s)\n", core.DisplayName(s.Modality), s.Modality)
		fmt.Printf("Created:   %s\n", s.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		if at, ok := s.State.TrashedAt(); ok {
			fmt.Printf("Trashed:   %s\n", at.Local().Format("2006-01-02 15:04:05"))
		}
		if s.Notes != "" {
			fmt.Printf("Notes:     %s\n", s.Notes)
		}

		if len(s.Measurements) == 0 {
			fmt.Println("\nNo measurements.")
			return nil
		}

		fmt.Println()
		for i, m := range s.Measurements {
			line := fmt.Sprintf("  %3d  %s  %s  %-18s", i+1,
				m.Timestamp.Local().Format("15:04:05.000"),
				core.FormatValue(m.PrimaryValue, 4, sep), desc.Describe(m.PrimaryValue))
			if self, ok := m.Secondary(models.SecondarySelfScale); ok {
				other, _ := m.Secondary(models.SecondaryOtherScale)
				line += fmt.Sprintf(" you %s other %s", core.FormatValue(self, 2, sep), core.FormatValue(other, 2, sep))
			}
			fmt.Println(strings.TrimRight(line, " "))
		}

		sum := core.Summarize(s.Measurements)
		fmt.Printf("\n  n=%d  avg %s  min %s  max %s\n", sum.Count,
			core.FormatValue(sum.Average, 4, sep), core.FormatValue(sum.Min, 4, sep), core.FormatValue(sum.Max, 4, sep))
		return nil
	},
}

var sessionNotesCmd = &cobra.Command{
	Use:               "notes <session-id> <text>",
	Short:             "Replace the notes of a session",
	Long:              `Replace the notes of a session. Pass an empty string to clear them.`,
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeAnySessionID,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Library == nil {
			return fmt.Errorf("session library not initialized")
		}
		if err := Library.SetNotes(args[0], args[1]); err != nil {
			return fmt.Errorf("setting notes: %w", err)
		}
		fmt.Printf("Notes updated for %s\n", args[0])
		return nil
	},
}

var sessionTrashCmd = &cobra.Command{
	Use:               "trash <session-id>...",
	Short:             "Move sessions to the trash",
	Args:              cobra.MinimumNArgs(1),
	ValidArgsFunction: completeSessionIDs(false),
	RunE: func(cmd *cobra.Command, args []string) error {
		return forEachSession(args, "Trashed", func(id string) error { return Library.Trash(id) })
	},
}

var sessionRestoreCmd = &cobra.Command{
	Use:               "restore <session-id>...",
	Short:             "Restore sessions from the trash",
	Args:              cobra.MinimumNArgs(1),
	ValidArgsFunction: completeSessionIDs(true),
	RunE: func(cmd *cobra.Command, args []string) error {
		return forEachSession(args, "Restored", func(id string) error { return Library.Restore(id) })
	},
}

var sessionPurgeCmd = &cobra.Command{
	Use:   "purge <session-id>...",
	Short: "Permanently delete sessions",
	Long: `Permanently delete sessions and their measurements. Only trashed
sessions can be purged unless --force is given.`,
	Args:              cobra.MinimumNArgs(1),
	ValidArgsFunction: completeSessionIDs(true),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		return forEachSession(args, "Deleted", func(id string) error {
			if !force {
				s, err := Library.Get(id)
				if err != nil {
					return err
				}
				if !s.State.IsTrashed() {
					return fmt.Errorf("session %s is not in the trash (use --force)", id)
				}
			}
			return Library.Purge(id)
		})
	},
}

var sessionEmptyTrashCmd = &cobra.Command{
	Use:   "empty-trash",
	Short: "Permanently delete every trashed session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Library == nil {
			return fmt.Errorf("session library not initialized")
		}
		n, err := Library.EmptyTrash()
		fmt.Printf("Deleted %d session(s)\n", n)
		return err
	},
}

// forEachSession applies fn to every id, reporting each success and
// returning the first failure after attempting them all.
func forEachSession(ids []string, verb string, fn func(id string) error) error {
	if Library == nil {
		return fmt.Errorf("session library not initialized")
	}
	var firstErr error
	for _, id := range ids {
		if err := fn(id); err != nil {
			fmt.Printf("  %s: %v\n", id, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		fmt.Printf("%s %s\n", verb, id)
	}
	return firstErr
}

// sessionRow is the JSON shape of a session in listings.
type sessionRow struct {
	ID           string  `json:"id"`
	Modality     string  `json:"modality"`
	CreatedAt    string  `json:"createdAt"`
	Status       string  `json:"status"`
	Notes        string  `json:"notes,omitempty"`
	Measurements int     `json:"measurements"`
	Average      float64 `json:"average"`
}

func newSessionRow(s models.Session) sessionRow {
	sum := core.Summarize(s.Measurements)
	return sessionRow{
		ID:           s.ID,
		Modality:     string(s.Modality),
		CreatedAt:    s.CreatedAt.UTC().Format(export.TimestampLayout),
		Status:       string(s.State.Status()),
		Notes:        s.Notes,
		Measurements: sum.Count,
		Average:      sum.Average,
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func firstLine(s string, max int) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i] + "..."
	}
	if r := []rune(s); len(r) > max {
		s = string(r[:max-3]) + "..."
	}
	return s
}

func init() {
	sessionListFlags.register(sessionListCmd, true)
	sessionListCmd.Flags().BoolVar(&sessionListJSON, "json", false, "Output sessions as JSON")
	sessionShowCmd.Flags().BoolVar(&sessionShowJSON, "json", false, "Output the session as JSON")
	sessionPurgeCmd.Flags().Bool("force", false, "Delete sessions that are not in the trash")

	sessionCmd.AddCommand(sessionListCmd, sessionShowCmd, sessionNotesCmd,
		sessionTrashCmd, sessionRestoreCmd, sessionPurgeCmd, sessionEmptyTrashCmd)
	rootCmd.AddCommand(sessionCmd)
}
