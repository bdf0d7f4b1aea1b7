package commands

import (
	"os"

	"easypce-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

type termStatus struct {
	offerings int
	details   int
	evals     int
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Lists every term in the database with how much of it has been scraped.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		cfg, err := loadConfig(*configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		store, database, err := openStore(cfg)
		if err != nil {
			serviceutil.Fatal("failed to open store", err)
		}
		defer database.Close()

		terms, err := store.ListTerms(ctx)
		if err != nil {
			serviceutil.Fatal("failed to list terms", err)
		}
		keys, err := store.ListOfferingKeys(ctx)
		if err != nil {
			serviceutil.Fatal("failed to list offerings", err)
		}

		byTerm := map[int]*termStatus{}
		for _, term := range terms {
			byTerm[term.Code] = &termStatus{}
		}
		for _, state := range keys {
			status, ok := byTerm[state.Key.TermCode]
			if !ok {
				continue
			}
			status.offerings++
			if state.DetailsScraped {
				status.details++
			}
			if state.EvalsScraped {
				status.evals++
			}
		}

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Code", "Term", "Dates", "Offerings", "Details", "Evaluations"})
		for _, term := range terms {
			status := byTerm[term.Code]
			t.AppendRow(table.Row{
				term.Code,
				term.Name,
				term.StartDate.Format("Jan 2") + " - " + term.EndDate.Format("Jan 2, 2006"),
				status.offerings,
				status.details,
				status.evals,
			})
		}
		t.Render()
	},
}
