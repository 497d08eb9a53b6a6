package report

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/kpi-report-cli/internal/model"
	"github.com/sells-group/kpi-report-cli/internal/quarter"
)

// Summary renders the verified numbers as plain text for the narrative
// generator. The generator only ever sees this restatement; it never
// receives raw CRM records, and nothing it returns flows back into a
// numeric field.
func Summary(n model.VerifiedNumbers) string {
	p := message.NewPrinter(language.English)
	var b strings.Builder

	p.Fprintf(&b, "Marketing KPI data for %d (all values verified from source systems):\n\n", n.Year)

	writeCounts := func(label string, c quarter.Counts) {
		p.Fprintf(&b, "%s: Q1=%d Q2=%d Q3=%d Q4=%d total=%d\n",
			label, c.Q1, c.Q2, c.Q3, c.Q4, c.Total())
	}
	writeAmounts := func(label string, a quarter.Amounts) {
		p.Fprintf(&b, "%s: Q1=$%.2f Q2=$%.2f Q3=$%.2f Q4=$%.2f total=$%.2f\n",
			label, a.Q1, a.Q2, a.Q3, a.Q4, a.Total())
	}

	writeCounts("New deals", n.NewDeals)
	writeAmounts("New deal value", n.NewDealValue)
	if len(n.Pipelines) > 0 {
		p.Fprintf(&b, "(deal metrics filtered to pipelines: %s)\n", strings.Join(n.Pipelines, ", "))
	}
	writeCounts("New contacts", n.NewContacts)
	writeCounts("New companies", n.NewCompanies)
	writeCounts("Website sessions", n.WebSessions)
	if n.SessionsStatus != "" {
		p.Fprintf(&b, "Website sessions note: %s\n", n.SessionsStatus)
	}

	if len(n.FormSubmissions) > 0 {
		b.WriteString("\nForm submissions:\n")
		for _, f := range n.FormSubmissions {
			writeCounts("  "+f.Name, f.Counts)
		}
	}
	if len(n.ListSizes) > 0 {
		b.WriteString("\nList sizes (current):\n")
		for _, l := range n.ListSizes {
			p.Fprintf(&b, "  %s: %d members\n", l.Name, l.Size)
		}
	}

	b.WriteString("\nLifecycle stage entries (contacts first reaching each stage):\n")
	for _, lm := range n.Lifecycle {
		if lm.Counts.IsZero() {
			continue
		}
		writeCounts("  "+lm.Label, lm.Counts)
	}
	if len(n.CurrentStages) > 0 {
		b.WriteString("Current lifecycle stage distribution: ")
		parts := make([]string, 0, len(n.CurrentStages))
		for _, sc := range n.CurrentStages {
			parts = append(parts, p.Sprintf("%s=%d", sc.Label, sc.Count))
		}
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	writeCounts("MQL-sourced deals", n.MQLDeals)
	writeAmounts("MQL-sourced deal value", n.MQLDealValue)
	writeCounts("SQL-sourced deals", n.SQLDeals)
	writeAmounts("SQL-sourced deal value", n.SQLDealValue)

	if len(n.StageBreakdown) > 0 {
		b.WriteString("\nOpen deals by stage:\n")
		for _, s := range n.StageBreakdown {
			p.Fprintf(&b, "  %s (win %.0f%%): %d deals, $%.2f\n",
				s.Label, s.Probability*100, s.Count, s.Value)
		}
	}
	if len(n.OwnerBreakdown) > 0 {
		b.WriteString("\nDeals by owner:\n")
		for _, o := range n.OwnerBreakdown {
			p.Fprintf(&b, "  %s: %d deals, $%.2f\n", o.Name, o.Count, o.Value)
		}
	}
	if len(n.ChannelTraffic) > 0 {
		b.WriteString("\nTraffic by channel:\n")
		for _, c := range n.ChannelTraffic {
			p.Fprintf(&b, "  %s: %d sessions\n", c.Channel, c.Sessions)
		}
	}
	if n.TrafficStatus != "" {
		fmt.Fprintf(&b, "Traffic note: %s\n", n.TrafficStatus)
	}

	return b.String()
}
