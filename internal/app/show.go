package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"churn-risk-alerts/internal/storage"
)

// Show prints recent alert history.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if opts.Kind != "" && !storage.AlertKind(opts.Kind).Valid() {
		return fmt.Errorf("unknown alert kind %q", opts.Kind)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	var records []storage.AlertHistoryRecord
	if opts.FailedOnly {
		records, err = store.RecentFailedAlerts(ctx, limit)
	} else {
		records, _, err = store.ListAlerts(ctx, storage.AlertHistoryFilter{
			Kind:     storage.AlertKind(opts.Kind),
			Page:     1,
			PageSize: limit,
		})
	}
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tKind\tCustomer\tSent\tError")

	for _, record := range records {
		customer := "-"
		if record.CustomerID != nil {
			customer = fmt.Sprintf("%d", *record.CustomerID)
		}
		errMsg := ""
		if record.ErrorMessage != nil {
			errMsg = sanitizeInline(*record.ErrorMessage)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%t\t%s\n",
			record.SentAt.UTC().Format(time.RFC3339),
			record.Kind,
			customer,
			record.WasSent,
			errMsg,
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
