package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"churn-risk-alerts/internal/storage"
)

// ImportCustomers loads the customer population from a CSV export. Columns
// are matched by header name, so extra columns such as RowNumber are ignored.
func (a *App) ImportCustomers(ctx context.Context, opts ImportOptions) error {
	if opts.Path == "" {
		return errors.New("--file is required")
	}

	file, err := os.Open(opts.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read csv header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if err := checkImportHeader(columns); err != nil {
		return err
	}

	var imported, skipped int
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read csv line %d: %w", line, err)
		}

		customer, err := parseCustomerRow(row, columns)
		if err != nil {
			a.Logger.Warn().Err(err).Int("line", line).Msg("skipping malformed row")
			skipped++
			continue
		}

		if !opts.DryRun {
			if err := store.UpsertCustomer(ctx, customer); err != nil {
				return err
			}
		}
		imported++
	}

	a.Logger.Info().
		Int("imported", imported).
		Int("skipped", skipped).
		Bool("dry_run", opts.DryRun).
		Msg("customer import finished")
	return nil
}

var requiredImportColumns = []string{
	"customerid", "surname", "creditscore", "geography", "gender", "age",
	"tenure", "balance", "numofproducts", "hascrcard", "isactivemember",
	"estimatedsalary", "exited",
}

func checkImportHeader(columns map[string]int) error {
	for _, required := range requiredImportColumns {
		if _, ok := columns[required]; !ok {
			return fmt.Errorf("csv is missing required column %q", required)
		}
	}
	return nil
}

func parseCustomerRow(row []string, columns map[string]int) (storage.Customer, error) {
	field := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	id, err := strconv.ParseInt(field("customerid"), 10, 64)
	if err != nil {
		return storage.Customer{}, fmt.Errorf("parse customer id: %w", err)
	}

	creditScore, err := strconv.Atoi(field("creditscore"))
	if err != nil {
		return storage.Customer{}, fmt.Errorf("parse credit score: %w", err)
	}
	age, err := strconv.Atoi(field("age"))
	if err != nil {
		return storage.Customer{}, fmt.Errorf("parse age: %w", err)
	}
	tenure, err := strconv.Atoi(field("tenure"))
	if err != nil {
		return storage.Customer{}, fmt.Errorf("parse tenure: %w", err)
	}
	numOfProducts, err := strconv.Atoi(field("numofproducts"))
	if err != nil {
		return storage.Customer{}, fmt.Errorf("parse num of products: %w", err)
	}

	balance, err := decimal.NewFromString(field("balance"))
	if err != nil {
		return storage.Customer{}, fmt.Errorf("parse balance: %w", err)
	}
	salary, err := decimal.NewFromString(field("estimatedsalary"))
	if err != nil {
		return storage.Customer{}, fmt.Errorf("parse estimated salary: %w", err)
	}

	return storage.Customer{
		ID:              id,
		Surname:         field("surname"),
		CreditScore:     creditScore,
		Geography:       field("geography"),
		Gender:          field("gender"),
		Age:             age,
		Tenure:          tenure,
		Balance:         balance,
		NumOfProducts:   numOfProducts,
		HasCrCard:       parseFlag(field("hascrcard")),
		IsActiveMember:  parseFlag(field("isactivemember")),
		EstimatedSalary: salary,
		Exited:          parseFlag(field("exited")),
	}, nil
}

func parseFlag(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}
