package alerting

import (
	"encoding/json"
	"fmt"
	"time"

	"churn-risk-alerts/internal/storage"
)

// maxPayloadBytes is the webhook channel's message size limit.
const maxPayloadBytes = 2000

const (
	colorRed  = 15158332
	colorBlue = 3447003
)

// EmbedField is one labelled value inside an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Embed is one rich block inside a webhook message.
type Embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []EmbedField `json:"fields"`
	Timestamp   string       `json:"timestamp"`
}

// Message is the structured payload posted to the notification channel.
type Message struct {
	Embeds []Embed `json:"embeds"`
}

// Payload marshals the message, enforcing the channel size limit. Oversize
// messages are a permanent delivery failure.
func (m Message) Payload() ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, PermanentError(fmt.Sprintf("marshal message: %v", err))
	}
	if len(body) > maxPayloadBytes {
		return nil, PermanentError(fmt.Sprintf("message exceeds %d byte limit", maxPayloadBytes))
	}
	return body, nil
}

// CustomerAlertMessage renders one alert kind for one customer.
func CustomerAlertMessage(kind storage.AlertKind, customer storage.Customer, record storage.RiskHistoryRecord) Message {
	embed := Embed{
		Color:     colorRed,
		Timestamp: record.EvaluatedAt.UTC().Format(time.RFC3339),
		Fields: []EmbedField{
			{Name: "Customer ID", Value: fmt.Sprintf("%d", customer.ID), Inline: true},
			{Name: "Customer Name", Value: customer.Surname, Inline: true},
			{Name: "Churn Probability", Value: fmt.Sprintf("%.2f%%", record.ChurnProbability*100), Inline: true},
			{Name: "Geography", Value: customer.Geography, Inline: true},
		},
	}

	switch kind {
	case storage.AlertKindHighRisk:
		embed.Title = "High Risk Customer Alert"
		embed.Description = "Customer has exceeded the high-risk threshold."
	case storage.AlertKindRiskIncrease:
		embed.Title = "Churn Risk Increase Alert"
		embed.Description = "Significant increase in churn risk."
	}

	if record.PreviousProbability != nil && record.RiskChange != nil {
		embed.Fields = append(embed.Fields,
			EmbedField{Name: "Previous Probability", Value: fmt.Sprintf("%.2f%%", *record.PreviousProbability*100), Inline: true},
			EmbedField{Name: "Risk Change", Value: fmt.Sprintf("%+.2f%%", *record.RiskChange), Inline: true},
		)
	}

	details := fmt.Sprintf("Age: %d\nTenure: %d months\nBalance: $%s\nProducts: %d\nActive Member: %s",
		customer.Age,
		customer.Tenure,
		customer.Balance.StringFixed(2),
		customer.NumOfProducts,
		yesNo(customer.IsActiveMember),
	)
	embed.Fields = append(embed.Fields, EmbedField{Name: "Customer Details", Value: details})

	return Message{Embeds: []Embed{embed}}
}

// RunStats carries the counters a run-level SUMMARY message reports.
type RunStats struct {
	TotalChecked         int
	HighRisk             int
	SignificantIncreases int
	Failures             int
}

// SummaryMessage renders the run-level monitoring summary.
func SummaryMessage(stats RunStats, at time.Time) Message {
	return Message{Embeds: []Embed{{
		Title:     "Churn Risk Monitoring Summary",
		Color:     colorBlue,
		Timestamp: at.UTC().Format(time.RFC3339),
		Fields: []EmbedField{
			{Name: "Total Customers Checked", Value: fmt.Sprintf("%d", stats.TotalChecked), Inline: true},
			{Name: "High Risk Customers", Value: fmt.Sprintf("%d", stats.HighRisk), Inline: true},
			{Name: "Significant Risk Increases", Value: fmt.Sprintf("%d", stats.SignificantIncreases), Inline: true},
			{Name: "Failed Evaluations", Value: fmt.Sprintf("%d", stats.Failures), Inline: true},
		},
	}}}
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
