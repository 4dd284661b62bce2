package parser_test

import (
	"fmt"

	"github.com/troopkit/rostersync/internal/parser"
)

func ExampleParser_ParseRow() {
	p := parser.New(nil)
	m, _ := p.ParseRow("George Anderson 133456904 YOUTH 15 Life Scout Flaring Phoenix Senior Patrol Leader Current 8/31/2026")

	fmt.Println(m.Name, "|", m.BSAMemberID, "|", m.Type)
	fmt.Println(m.LastRankApproved, "|", m.Patrol, "|", m.Position)
	fmt.Println(m.RenewalStatus, "|", m.ExpirationDate)
	// Output:
	// George Anderson | 133456904 | YOUTH
	// Life Scout | Flaring Phoenix | Senior Patrol Leader
	// Current | 8/31/2026
}

func ExampleTotalMemberCount() {
	fmt.Println(parser.TotalMemberCount(`- text: Total 57 Items`))
	fmt.Println(parser.CurrentPage(`- listitem "3" [selected] [ref=e9]`))
	// Output:
	// 57
	// 3
}
