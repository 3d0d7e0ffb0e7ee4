package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sheenazien8/mysql2mongo/pipeline"
	"github.com/sheenazien8/mysql2mongo/schema"
	"github.com/sheenazien8/mysql2mongo/translate"
	"github.com/sheenazien8/mysql2mongo/ui/highlight"
	"github.com/sheenazien8/mysql2mongo/ui/theme"
	"github.com/sheenazien8/mysql2mongo/validate"
)

var printDDL bool

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Create collections, validators and indexes from the schema",
	Long: `translate creates one collection per table with a $jsonSchema validator and the
translated indexes. With --print-ddl it only prints the validators and the MySQL DDL the
validation database would be built with, without touching either server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if printDDL {
			if cfg.Schema.File == "" {
				return fmt.Errorf("schema.file is required")
			}
			s, err := schema.Load(cfg.Schema.File)
			if err != nil {
				return err
			}
			return printTranslation(cmd.OutOrStdout(), s)
		}
		return execute(cmd, []string{pipeline.StageTranslate})
	},
}

func init() {
	translateCmd.Flags().BoolVar(&printDDL, "print-ddl", false, "Print validators and DDL instead of applying them")
	rootCmd.AddCommand(translateCmd)
}

func printTranslation(w io.Writer, s *schema.RelationalSchema) error {
	t := theme.Current
	for _, tbl := range s.DataTables() {
		v, err := translate.BuildValidator(tbl)
		if err != nil {
			return err
		}
		js, err := bson.MarshalExtJSONIndent(v, false, false, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode validator of %s: %w", tbl.Name, err)
		}
		fmt.Fprintln(w, t.Title.Render("// collection "+tbl.Name))
		fmt.Fprintln(w, highlight.JSON(string(js)))
		fmt.Fprintln(w)
	}

	rec, err := translate.Translate(s)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, t.Title.Render("-- validation database "+s.Database+validate.DatabaseSuffix))
	fmt.Fprint(w, highlight.SQL(validate.Script(rec)))
	return nil
}
