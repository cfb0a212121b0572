package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	apperrors "stockalerts/internal/errors"
	"stockalerts/internal/models"
	"stockalerts/internal/quotes"
	"stockalerts/internal/security"
	"stockalerts/internal/store"
	"stockalerts/pkg/utils"
)

func newQuoteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "quote <symbol>...",
		Short: "Fetch the latest close for symbols",
		Args:  cobra.MinimumNArgs(1),
		Example: `  stockalerts quote AAPL MSFT
  stockalerts quote --json AAPL`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config()
			if err != nil {
				return err
			}
			provider, err := quotes.New(cfg.Quotes, app.Logger)
			if err != nil {
				return err
			}

			ctx := contextOrBackground(cmd)
			var (
				results []models.Quote
				errs    []error
			)
			for _, arg := range args {
				symbol := security.SanitizeSymbol(arg)
				if symbol == "" {
					errs = append(errs, fmt.Errorf("invalid symbol %q", arg))
					continue
				}
				q, err := provider.Quote(ctx, symbol)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				results = append(results, q)
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				if err := output.JSON(results); err != nil {
					return err
				}
				return apperrors.Join(errs...)
			}

			table := NewTable(output, "SYMBOL", "CLOSE", "AS OF")
			for _, q := range results {
				asOf := "-"
				if !q.Timestamp.IsZero() {
					asOf = q.Timestamp.Local().Format(time.RFC822)
				}
				table.AddRow(q.Symbol, utils.FormatDollars(q.Close), asOf)
			}
			table.Render()
			for _, err := range errs {
				output.Error("%v", err)
			}
			return apperrors.Join(errs...)
		},
	}
}

// SeedFile is the document accepted by the seed command.
type SeedFile struct {
	Stocks []models.StockRecord `json:"stocks" validate:"dive"`
	Alerts []models.AlertRecord `json:"alerts" validate:"dive"`
}

// LoadSeedFile reads and validates a seed document.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	var seed SeedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	if err := validator.New().Struct(seed); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidRecord, err)
	}
	return &seed, nil
}

func newSeedCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.json>",
		Short: "Load stocks and alerts into the datastore",
		Long: `Load stocks and alerts from a JSON file of the form

  {"stocks": [{"name": "AAPL", "lastprice": 190.5}],
   "alerts": [{"name": "AAPL", "targetprice": 200, "direction": 1}]}

Existing stocks keep their name and take the new lastprice.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config()
			if err != nil {
				return err
			}
			seed, err := LoadSeedFile(args[0])
			if err != nil {
				return err
			}

			ds, err := store.New(cfg.Datastore)
			if err != nil {
				return err
			}
			defer ds.Close()

			seeder, ok := ds.(store.Seeder)
			if !ok {
				return fmt.Errorf("datastore %s does not support seeding", cfg.Datastore.Scheme())
			}

			ctx := contextOrBackground(cmd)
			for _, st := range seed.Stocks {
				if err := seeder.PutStock(ctx, st); err != nil {
					return err
				}
			}
			for _, a := range seed.Alerts {
				if err := seeder.PutAlert(ctx, a); err != nil {
					return err
				}
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]int{"stocks": len(seed.Stocks), "alerts": len(seed.Alerts)})
			}
			output.Success("Seeded %d stocks and %d alerts", len(seed.Stocks), len(seed.Alerts))
			return nil
		},
	}
}
