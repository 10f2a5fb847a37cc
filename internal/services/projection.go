package services

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"mxmoney/internal/core"
)

type occurrenceKey struct {
	template int64
	date     string
}

// BuildProjection walks [base, base+days] one day at a time starting from
// opening, the balance at the end of the day before base. window holds the
// stored rows dated inside the window and all holds every stored row; the
// recurring templates among them are expanded over the window.
//
// Each template contributes at most once per date: a materialized row whose
// template also expands onto the same date is not counted a second time.
// Same-day transactions are ordered by ascending ID.
func BuildProjection(ctx context.Context, opening core.Money, base core.Date, days int, window, all []core.Transaction) []core.BalancePoint {
	end := base.AddDays(days)
	buckets := make(map[string][]core.Transaction)
	expanded := make(map[occurrenceKey]bool)

	for _, t := range all {
		if !t.IsTemplate() || t.EffectiveDate.After(end) {
			continue
		}
		dates, err := Expand(t, base, end)
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed recurring template",
				"id", t.ID,
				"description", t.Description,
				"error", err)
			continue
		}
		for _, d := range dates {
			occ := t
			occ.EffectiveDate = d
			buckets[d.String()] = append(buckets[d.String()], occ)
			expanded[occurrenceKey{t.ID, d.String()}] = true
		}
	}

	for _, t := range window {
		if t.IsTemplate() {
			continue
		}
		if t.ParentTemplateID != nil && expanded[occurrenceKey{*t.ParentTemplateID, t.EffectiveDate.String()}] {
			slog.DebugContext(ctx, "Materialized occurrence already covered by its template",
				"id", t.ID,
				"template_id", *t.ParentTemplateID,
				"date", t.EffectiveDate.String())
			continue
		}
		buckets[t.EffectiveDate.String()] = append(buckets[t.EffectiveDate.String()], t)
	}

	points := make([]core.BalancePoint, 0, days+1)
	balance := opening
	for i := 0; i <= days; i++ {
		day := base.AddDays(i)
		txs := buckets[day.String()]
		slices.SortStableFunc(txs, func(a, b core.Transaction) int { return cmp.Compare(a.ID, b.ID) })
		for _, t := range txs {
			balance = balance.Add(t.SignedAmount())
		}
		if txs == nil {
			txs = []core.Transaction{}
		}
		points = append(points, core.BalancePoint{Date: day, Balance: balance, Transactions: txs})
	}
	return points
}
