package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/opsgate/opsgate/internal/tools"
	"github.com/spf13/cobra"
)

func NewCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the tools the gateway can execute",
		RunE:  runCatalog,
	}
}

func runCatalog(cmd *cobra.Command, args []string) error {
	var (
		headerStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FAFAFA")).
				Background(lipgloss.Color("#8E4EC6")).
				Padding(0, 1).
				MarginBottom(1)

		wName = 20
		wKind = 12

		colHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#8E4EC6")).
				Bold(true).
				MarginRight(1)

		nameStyle = lipgloss.NewStyle().Width(wName).MarginRight(1)
		kindStyle = lipgloss.NewStyle().Width(wKind).MarginRight(1)

		readOnlyColor    = lipgloss.Color("#2E8B57")
		activeColor      = lipgloss.Color("#DAA520")
		destructiveColor = lipgloss.Color("#CD5C5C")
	)

	fmt.Println(headerStyle.Render("Tool Catalog"))

	headers := lipgloss.JoinHorizontal(lipgloss.Top,
		colHeaderStyle.Width(wName).Render("NAME"),
		colHeaderStyle.Width(wKind).Render("KIND"),
		colHeaderStyle.Render("DESCRIPTION"),
	)
	fmt.Printf("  %s\n", headers)

	sepStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginRight(1)
	separator := lipgloss.JoinHorizontal(lipgloss.Top,
		sepStyle.Render(strings.Repeat("─", wName)),
		sepStyle.Render(strings.Repeat("─", wKind)),
		sepStyle.Render(strings.Repeat("─", 40)),
	)
	fmt.Printf("  %s\n", separator)

	for _, spec := range tools.All() {
		kColor := readOnlyColor
		switch spec.Kind {
		case tools.KindActive:
			kColor = activeColor
		case tools.KindDestructive:
			kColor = destructiveColor
		}

		row := lipgloss.JoinHorizontal(lipgloss.Top,
			nameStyle.Render(spec.Name),
			kindStyle.Foreground(kColor).Render(string(spec.Kind)),
			spec.Description,
		)
		fmt.Printf("  %s\n", row)
	}

	fmt.Println()

	return nil
}
