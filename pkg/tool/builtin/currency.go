// Package builtin provides the tools the engine ships with: currency
// conversion, memory notes, and a small expression evaluator.
package builtin

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/youneslaaroussi/railway-llm-template/pkg/tool"
)

// usdRates maps currency codes to their value in USD terms. A static table
// keeps the tool deterministic and cache-friendly.
var usdRates = map[string]float64{
	"USD": 1.0,
	"EUR": 0.9241,
	"GBP": 0.7893,
	"JPY": 147.32,
	"CHF": 0.8011,
	"CAD": 1.3624,
	"AUD": 1.5289,
	"CNY": 7.1258,
	"INR": 87.54,
	"BRL": 5.4312,
}

// CurrencyTool converts an amount between two supported currencies
type CurrencyTool struct{}

// NewCurrencyTool creates the currency conversion tool
func NewCurrencyTool() *CurrencyTool {
	return &CurrencyTool{}
}

// Name returns the tool name
func (t *CurrencyTool) Name() string {
	return "convert_currency"
}

// Description returns the tool description
func (t *CurrencyTool) Description() string {
	return "Convert an amount of money from one currency to another. Supported currencies: USD, EUR, GBP, JPY, CHF, CAD, AUD, CNY, INR, BRL."
}

// Schema returns the JSON schema for the tool arguments
func (t *CurrencyTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"amount": map[string]any{
				"type":        "number",
				"description": "The amount of money to convert",
			},
			"from": map[string]any{
				"type":        "string",
				"description": "Source currency code, e.g. USD",
			},
			"to": map[string]any{
				"type":        "string",
				"description": "Target currency code, e.g. EUR",
			},
		},
		"required": []string{"amount", "from", "to"},
	}
}

// Execute performs the conversion
func (t *CurrencyTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	amount, ok := args["amount"].(float64)
	if !ok {
		return nil, tool.NewError("amount must be a number")
	}

	from, ok := args["from"].(string)
	if !ok {
		return nil, tool.NewError("from must be a currency code")
	}
	to, ok := args["to"].(string)
	if !ok {
		return nil, tool.NewError("to must be a currency code")
	}

	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))

	fromRate, ok := usdRates[from]
	if !ok {
		return nil, tool.NewError(fmt.Sprintf("unsupported currency: %s", from))
	}
	toRate, ok := usdRates[to]
	if !ok {
		return nil, tool.NewError(fmt.Sprintf("unsupported currency: %s", to))
	}

	rate := toRate / fromRate
	converted := math.Round(amount*rate*100) / 100

	return map[string]any{
		"amount":    amount,
		"from":      from,
		"to":        to,
		"rate":      rate,
		"converted": converted,
	}, nil
}
