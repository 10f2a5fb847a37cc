package services

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"mxmoney/internal/ai"
	"mxmoney/internal/core"
)

// ImportItem is one parsed statement row. A positive amount is money spent
// and a negative amount is money received, as banks print them.
type ImportItem struct {
	Date        core.Date  `json:"date"`
	Description string     `json:"description"`
	Amount      core.Money `json:"amount"`
	Category    string     `json:"category,omitempty"`
}

// ImportService turns bank statement exports into ledger rows.
type ImportService struct {
	completer    ai.Completer
	transactions *TransactionService
	categories   *CategoryService
	knowledge    string
}

// NewImportService creates a service. completer may be nil, in which case
// every row is categorized as FallbackCategory.
func NewImportService(completer ai.Completer, transactions *TransactionService, categories *CategoryService) *ImportService {
	return &ImportService{
		completer:    completer,
		transactions: transactions,
		categories:   categories,
		knowledge:    CategoryKnowledge,
	}
}

var (
	multiSpace   = regexp.MustCompile(`\s{2,}`)
	headerWords  = []string{"date", "title", "amount", "data", "valor", "descri"}
	currencyJunk = strings.NewReplacer("R$", "", "US$", "", "$", "", "€", "", "£", "", " ", "", "\u00a0", "")
	dateLayouts  = []string{core.DateLayout, "02/01/2006", "2006/01/02", "02-01-2006", "02.01.2006"}
)

// ParseCSV reads a statement with date, description and amount columns. The
// delimiter is detected per line (comma, semicolon or tab, else two or more
// spaces) and a leading header line is skipped. Rows that cannot be read are
// logged and skipped.
func ParseCSV(ctx context.Context, r io.Reader) ([]ImportItem, error) {
	var items []ImportItem
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	first := true
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if line == "" {
			continue
		}
		if first {
			first = false
			if isHeader(line) {
				continue
			}
		}

		fields, err := splitLine(line)
		if err != nil || len(fields) < 3 {
			slog.WarnContext(ctx, "Skipping statement row with too few columns", "line", lineNo)
			continue
		}

		date, err := parseStatementDate(fields[0])
		if err != nil {
			slog.WarnContext(ctx, "Skipping statement row with bad date", "line", lineNo, "date", fields[0])
			continue
		}
		amount, err := NormalizeAmount(fields[len(fields)-1])
		if err != nil {
			slog.WarnContext(ctx, "Skipping statement row with bad amount", "line", lineNo, "amount", fields[len(fields)-1])
			continue
		}
		desc := strings.TrimSpace(fields[1])
		if desc == "" {
			slog.WarnContext(ctx, "Skipping statement row without description", "line", lineNo)
			continue
		}

		items = append(items, ImportItem{Date: date, Description: desc, Amount: amount})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read statement: %w", err)
	}

	slog.InfoContext(ctx, "Parsed statement", "rows", len(items), "lines", lineNo)
	return items, nil
}

func isHeader(line string) bool {
	lower := strings.ToLower(line)
	for _, w := range headerWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// splitLine uses the first delimiter present in the line that yields at
// least three fields, so "01/03/2024;Market;69,79" splits on the semicolon.
func splitLine(line string) ([]string, error) {
	var fields []string
	for _, delim := range []rune{',', ';', '\t'} {
		if !strings.ContainsRune(line, delim) {
			continue
		}
		cr := csv.NewReader(strings.NewReader(line))
		cr.Comma = delim
		cr.LazyQuotes = true
		cr.TrimLeadingSpace = true
		got, err := cr.Read()
		if err != nil {
			return nil, err
		}
		if len(got) >= 3 {
			return got, nil
		}
		if fields == nil {
			fields = got
		}
	}
	if fields != nil {
		return fields, nil
	}
	return multiSpace.Split(line, -1), nil
}

func parseStatementDate(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOf(t), nil
		}
	}
	return core.Date{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, s)
}

// NormalizeAmount reads a signed statement amount written with either
// decimal convention: "1.000,00", "1,000.00" and "69,79" are all accepted.
// Currency symbols and spaces are ignored.
func NormalizeAmount(s string) (core.Money, error) {
	s = currencyJunk.Replace(strings.TrimSpace(s))
	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case comma >= 0 && dot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		s = strings.ReplaceAll(s, ",", ".")
	}
	if s == "" {
		return core.Money{}, core.ErrInvalidAmount
	}
	return core.ParseMoney(s)
}

// Categorize assigns a category to every item with a single model request.
// Items the model does not answer for, and every item when the model fails,
// get FallbackCategory.
func (s *ImportService) Categorize(ctx context.Context, items []ImportItem) []ImportItem {
	out := make([]ImportItem, len(items))
	copy(out, items)
	for i := range out {
		out[i].Category = FallbackCategory
	}
	if len(items) == 0 {
		return out
	}
	if s.completer == nil {
		slog.WarnContext(ctx, "No model configured, using fallback category", "items", len(items))
		return out
	}

	resp, err := s.completer.Complete(ctx, s.categorizePrompt(items))
	if err != nil {
		slog.ErrorContext(ctx, "Categorization request failed, using fallback category",
			"items", len(items), "error", err)
		return out
	}

	answers := parseNumberedAnswers(resp)
	for i := range out {
		if c, ok := answers[i+1]; ok {
			out[i].Category = c
		}
	}
	slog.InfoContext(ctx, "Categorization complete", "items", len(out), "answered", len(answers))
	return out
}

func (s *ImportService) categorizePrompt(items []ImportItem) string {
	var b strings.Builder
	b.WriteString("# TASK\n")
	b.WriteString("You classify bank transactions. Put each transaction below in exactly ONE category from the knowledge base.\n\n")
	b.WriteString("# KNOWLEDGE BASE (categories and keywords)\n")
	b.WriteString(s.knowledge)
	b.WriteString("\n\n# RULES\n")
	b.WriteString("1. Answer ONLY with the transaction number followed by the category, one per line\n")
	b.WriteString("2. Use the category name EXACTLY as written in the # headers of the knowledge base\n")
	fmt.Fprintf(&b, "3. If nothing fits, use %q\n", FallbackCategory)
	b.WriteString("4. Keywords may appear inside longer words, e.g. \"Pgto Autoposto\" is Transport\n")
	b.WriteString("5. Ignore common prefixes such as Pgto, Compra, Debito, Pix, POS, Card\n")
	b.WriteString("6. No explanations, no Markdown, no quotes\n\n")
	b.WriteString("# RESPONSE FORMAT\n1. Food\n2. Transport\n3. Health\n\n")
	b.WriteString("# TRANSACTIONS\n")
	for i, it := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, it.Description)
	}
	return b.String()
}

var numberedLine = regexp.MustCompile(`^(\d+)\s*[.:\-]?\s*(.+)$`)

// parseNumberedAnswers reads "1. Food", "2 - Transport" or "3: Health" lines.
func parseNumberedAnswers(resp string) map[int]string {
	answers := make(map[int]string)
	for _, line := range strings.Split(ai.CleanText(resp), "\n") {
		match := numberedLine.FindStringSubmatch(strings.TrimSpace(line))
		if match == nil {
			continue
		}
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		category := strings.Trim(strings.TrimSpace(match[2]), `"'*`)
		if category == "" {
			continue
		}
		if _, seen := answers[n]; !seen {
			answers[n] = category
		}
	}
	return answers
}

// SaveImported stores reviewed items. Positive amounts become expenses and
// negative amounts become income, both stored as absolute values. Items are
// validated before anything is written.
func (s *ImportService) SaveImported(ctx context.Context, items []ImportItem) ([]core.Transaction, error) {
	inputs := make([]TransactionInput, len(items))
	for i, it := range items {
		kind := core.Expense
		if it.Amount.IsNegative() {
			kind = core.Income
		}
		inputs[i] = TransactionInput{
			Description:   it.Description,
			Amount:        it.Amount.Abs(),
			EffectiveDate: it.Date,
			Kind:          string(kind),
			Recurrence:    string(core.None),
		}
		candidate := core.Transaction{}
		if err := inputs[i].apply(&candidate); err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		if err := candidate.Validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
	}

	saved := make([]core.Transaction, 0, len(items))
	for i, it := range items {
		category := strings.TrimSpace(it.Category)
		if category != "" && !strings.EqualFold(category, FallbackCategory) {
			c, err := s.categories.FindOrCreate(ctx, category)
			if err != nil {
				return saved, fmt.Errorf("item %d category %q: %w", i+1, category, err)
			}
			inputs[i].CategoryID = &c.ID
		}

		t, err := s.transactions.Create(ctx, inputs[i])
		if err != nil {
			return saved, fmt.Errorf("item %d: %w", i+1, err)
		}
		saved = append(saved, t)
	}

	slog.InfoContext(ctx, "Imported statement rows saved", "count", len(saved))
	return saved, nil
}
