package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/modelcheck/bimcheck/internal/fixture"
)

func newFixturesCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixtures",
		Short: "Describe the canonical fixture models checkers run against",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFixtures()
		},
	}

	return cmd
}

func runFixtures() error {
	for _, id := range fixture.Order {
		m, err := fixture.Build(id)
		if err != nil {
			return err
		}

		elements := m.Elements()
		byClass := make(map[string]int, 8)
		for _, e := range elements {
			byClass[e.Class()]++
		}
		classes := make([]string, 0, len(byClass))
		for c := range byClass {
			classes = append(classes, c)
		}
		sort.Strings(classes)

		fmt.Printf("%s: %s\n", id, fixture.Describe(id))
		fmt.Printf("  schema %s, %d elements\n", m.Schema(), len(elements))
		for _, c := range classes {
			fmt.Printf("  %-16s %d\n", c, byClass[c])
		}
		fmt.Println()
	}
	return nil
}
