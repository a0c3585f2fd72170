package confirm

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vadiminshakov/arbiter/internal/domain"
)

var (
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	warning   = lipgloss.AdaptiveColor{Light: "#D7263D", Dark: "#FF5F6D"}

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlight).
			Padding(0, 1)

	labelStyle  = lipgloss.NewStyle().Bold(true).Width(16)
	profitStyle = lipgloss.NewStyle().Foreground(special).Bold(true)
	lossStyle   = lipgloss.NewStyle().Foreground(warning).Bold(true)
)

// RenderPlan formats a plan as a bordered summary for the terminal.
func RenderPlan(plan domain.ArbitragePlan) string {
	m := plan.Margin
	profit := fmt.Sprintf("%s %s (%s%%)", m.NetProfit.StringFixed(4), plan.Pair.To, m.ProfitPercent.StringFixed(2))
	if m.NetProfit.IsPositive() {
		profit = profitStyle.Render(profit)
	} else {
		profit = lossStyle.Render(profit)
	}

	rows := [][2]string{
		{"Pair", plan.Pair.String()},
		{"Buy", fmt.Sprintf("%s @ %s (fee %s%%)", plan.BuyVenue, plan.BuyPrice.String(), plan.BuyFeePercent.String())},
		{"Sell", fmt.Sprintf("%s @ %s (fee %s%%)", plan.SellVenue, plan.SellPrice.String(), plan.SellFeePercent.String())},
		{"Amount", fmt.Sprintf("%s %s", plan.TradeAmount.String(), plan.Pair.To)},
		{"Base received", fmt.Sprintf("%s %s", m.BaseReceived.StringFixed(6), plan.Pair.From)},
		{"Withdraw fee", fmt.Sprintf("%s %s", plan.WithdrawFeeBase.String(), plan.Pair.From)},
		{"Final amount", fmt.Sprintf("%s %s", m.FinalQuoteAmount.StringFixed(4), plan.Pair.To)},
		{"Net profit", profit},
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, labelStyle.Render(row[0])+row[1])
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}
