package main

import (
	"churn-risk-alerts/internal/cli"
)

func main() {
	cli.Execute()
}
