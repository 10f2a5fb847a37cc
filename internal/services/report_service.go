package services

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"golang.org/x/text/language"

	"mxmoney/internal/ai"
	"mxmoney/internal/cache"
	"mxmoney/internal/core"
	"mxmoney/internal/storage"
)

const (
	LangPortuguese = "pt-BR"
	LangEnglish    = "en"

	uncategorized = "Uncategorized"
)

var reportLanguages = language.NewMatcher([]language.Tag{
	language.BrazilianPortuguese,
	language.English,
})

// ReportLanguage maps a requested language (a tag or an Accept-Language
// value) to one of the supported report languages. English is the default.
func ReportLanguage(requested string) string {
	tags, _, err := language.ParseAcceptLanguage(requested)
	if err != nil || len(tags) == 0 {
		return LangEnglish
	}
	_, idx, conf := reportLanguages.Match(tags...)
	if conf == language.No || idx != 0 {
		return LangEnglish
	}
	return LangPortuguese
}

// ReportSummary aggregates the whole ledger for a report.
type ReportSummary struct {
	From                  core.Date             `json:"from"`
	To                    core.Date             `json:"to"`
	Months                int                   `json:"months"`
	Count                 int                   `json:"count"`
	RecurringCount        int                   `json:"recurringCount"`
	TotalIncome           core.Money            `json:"totalIncome"`
	TotalExpense          core.Money            `json:"totalExpense"`
	Balance               core.Money            `json:"balance"`
	MonthlyAverageExpense core.Money            `json:"monthlyAverageExpense"`
	ExpensesByCategory    []core.CategoryAmount `json:"expensesByCategory"`
	IncomeByCategory      []core.CategoryAmount `json:"incomeByCategory"`
}

// ReportAnalysis is the result of a report request. A model failure is not
// an error: Success is false and ErrorMessage explains it.
type ReportAnalysis struct {
	Analysis     string    `json:"analysis"`
	GeneratedAt  time.Time `json:"generatedAt"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Language     string    `json:"language"`
}

// Summarize aggregates txs. Every stored row counts once, templates included.
func Summarize(txs []core.Transaction) ReportSummary {
	var s ReportSummary
	if len(txs) == 0 {
		return s
	}

	expenses := make(map[string]core.Money)
	income := make(map[string]core.Money)
	s.From, s.To = txs[0].EffectiveDate, txs[0].EffectiveDate
	for _, t := range txs {
		s.Count++
		if t.IsTemplate() {
			s.RecurringCount++
		}
		if t.EffectiveDate.Before(s.From) {
			s.From = t.EffectiveDate
		}
		if t.EffectiveDate.After(s.To) {
			s.To = t.EffectiveDate
		}

		name := uncategorized
		if t.Category != nil {
			name = t.Category.Name
		}
		switch t.Kind {
		case core.Income:
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
			income[name] = income[name].Add(t.Amount)
		case core.Expense:
			s.TotalExpense = s.TotalExpense.Add(t.Amount)
			expenses[name] = expenses[name].Add(t.Amount)
		}
	}

	s.Months = max(core.MonthsBetween(s.From, s.To)+1, 1)
	s.Balance = s.TotalIncome.Sub(s.TotalExpense)
	s.MonthlyAverageExpense = s.TotalExpense.Div(int64(s.Months))
	s.ExpensesByCategory = sortedAmounts(expenses)
	s.IncomeByCategory = sortedAmounts(income)
	return s
}

func sortedAmounts(byName map[string]core.Money) []core.CategoryAmount {
	out := make([]core.CategoryAmount, 0, len(byName))
	for name, amount := range byName {
		out = append(out, core.CategoryAmount{Name: name, Amount: amount})
	}
	slices.SortFunc(out, func(a, b core.CategoryAmount) int {
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

// ReportService writes financial reports with the language model.
type ReportService struct {
	store     storage.TransactionStore
	completer ai.Completer
	currency  string
	cache     cache.Cache[ReportAnalysis]
	now       func() time.Time
}

// NewReportService creates a service. completer and reports may be nil.
// Amounts are displayed in currency, an ISO 4217 code.
func NewReportService(store storage.TransactionStore, completer ai.Completer, currency string, reports cache.Cache[ReportAnalysis]) *ReportService {
	if currency == "" {
		currency = money.BRL
	}
	return &ReportService{
		store:     store,
		completer: completer,
		currency:  strings.ToUpper(currency),
		cache:     reports,
		now:       time.Now,
	}
}

// Invalidate drops cached reports after the ledger changed.
func (s *ReportService) Invalidate() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

// FormatMoney displays m in the service currency, e.g. "R$1.234,50".
func (s *ReportService) FormatMoney(m core.Money) string {
	return money.New(m.Cents(), s.currency).Display()
}

// Summary reads the whole ledger and aggregates it.
func (s *ReportService) Summary(ctx context.Context) (ReportSummary, error) {
	txs, err := s.store.FindAll(ctx)
	if err != nil {
		return ReportSummary{}, fmt.Errorf("load transactions: %w", err)
	}
	return Summarize(txs), nil
}

// GenerateAnalysis asks the model for a written analysis of the ledger in
// lang. Successful results are cached until Invalidate.
func (s *ReportService) GenerateAnalysis(ctx context.Context, lang string) (ReportAnalysis, error) {
	lang = ReportLanguage(lang)
	key := "analysis:" + lang
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			slog.DebugContext(ctx, "Report served from cache", "language", lang)
			return cached, nil
		}
	}

	summary, err := s.Summary(ctx)
	if err != nil {
		return ReportAnalysis{}, err
	}

	result := ReportAnalysis{GeneratedAt: s.now(), Language: lang}
	if summary.Count == 0 {
		result.Analysis = localized(lang, msgNotEnoughData)
		result.Success = true
		return result, nil
	}
	if s.completer == nil {
		result.ErrorMessage = localized(lang, msgModelUnavailable)
		return result, nil
	}

	text, err := s.completer.Complete(ctx, s.analysisPrompt(summary, lang))
	if err != nil {
		slog.ErrorContext(ctx, "Report generation failed", "language", lang, "error", err)
		result.ErrorMessage = localized(lang, msgModelFailed) + ": " + err.Error()
		return result, nil
	}

	result.Analysis = text
	result.Success = true
	if s.cache != nil {
		s.cache.Set(key, result)
	}
	slog.InfoContext(ctx, "Report generated",
		"language", lang,
		"transactions", summary.Count,
		"chars", len(text))
	return result, nil
}

// RenderSummary writes summary as plain text in lang.
func (s *ReportService) RenderSummary(summary ReportSummary, lang string) string {
	l := labels[ReportLanguage(lang)]
	var b strings.Builder
	fmt.Fprintf(&b, "=== %s ===\n\n", l.title)
	fmt.Fprintf(&b, "%s: %s - %s (%d %s)\n", l.period,
		summary.From.Format("02/01/2006"), summary.To.Format("02/01/2006"), summary.Months, l.months)
	fmt.Fprintf(&b, "%s: %d\n", l.count, summary.Count)
	fmt.Fprintf(&b, "%s: %d\n\n", l.recurring, summary.RecurringCount)
	fmt.Fprintf(&b, "%s: %s\n", l.income, s.FormatMoney(summary.TotalIncome))
	fmt.Fprintf(&b, "%s: %s\n", l.expense, s.FormatMoney(summary.TotalExpense))
	fmt.Fprintf(&b, "%s: %s\n", l.balance, s.FormatMoney(summary.Balance))
	fmt.Fprintf(&b, "%s: %s\n\n", l.average, s.FormatMoney(summary.MonthlyAverageExpense))

	fmt.Fprintf(&b, "--- %s ---\n", l.expensesBy)
	for _, c := range summary.ExpensesByCategory {
		fmt.Fprintf(&b, "- %s: %s (%s: %s)\n", c.Name, s.FormatMoney(c.Amount),
			l.monthlyAvg, s.FormatMoney(c.Amount.Div(int64(summary.Months))))
	}
	fmt.Fprintf(&b, "\n--- %s ---\n", l.incomeBy)
	for _, c := range summary.IncomeByCategory {
		fmt.Fprintf(&b, "- %s: %s\n", c.Name, s.FormatMoney(c.Amount))
	}
	return b.String()
}

func (s *ReportService) analysisPrompt(summary ReportSummary, lang string) string {
	return fmt.Sprintf(analysisPrompts[lang], s.RenderSummary(summary, lang))
}

type reportLabels struct {
	title, period, months, count, recurring string
	income, expense, balance, average       string
	expensesBy, incomeBy, monthlyAvg        string
}

var labels = map[string]reportLabels{
	LangEnglish: {
		title: "FINANCIAL SUMMARY", period: "Analyzed period", months: "months",
		count: "Total transactions", recurring: "Recurring transactions",
		income: "TOTAL INCOME", expense: "TOTAL EXPENSES", balance: "BALANCE",
		average: "MONTHLY AVERAGE EXPENSES", expensesBy: "Expenses by Category",
		incomeBy: "Income by Category", monthlyAvg: "Monthly avg",
	},
	LangPortuguese: {
		title: "RESUMO FINANCEIRO", period: "Período analisado", months: "meses",
		count: "Total de transações", recurring: "Transações recorrentes",
		income: "RECEITAS TOTAIS", expense: "DESPESAS TOTAIS", balance: "SALDO",
		average: "MÉDIA MENSAL DE DESPESAS", expensesBy: "Despesas por Categoria",
		incomeBy: "Receitas por Categoria", monthlyAvg: "Média mensal",
	},
}

type message int

const (
	msgNotEnoughData message = iota
	msgModelUnavailable
	msgModelFailed
)

var messages = map[string]map[message]string{
	LangEnglish: {
		msgNotEnoughData:    "Not enough transactions to generate an analysis. Add some transactions first.",
		msgModelUnavailable: "Report generation is not configured",
		msgModelFailed:      "Failed to generate analysis",
	},
	LangPortuguese: {
		msgNotEnoughData:    "Não há transações suficientes para gerar uma análise. Adicione algumas transações primeiro.",
		msgModelUnavailable: "A geração de relatórios não está configurada",
		msgModelFailed:      "Falha ao gerar a análise",
	},
}

func localized(lang string, m message) string {
	return messages[lang][m]
}

var analysisPrompts = map[string]string{
	LangEnglish: `# ROLE
You are an experienced personal finance consultant specialized in household budgets.

# TASK
Analyze the financial data below and write a personalized, actionable report.

# RESPONSE FORMAT (Markdown, exactly these sections)
## Financial Diagnosis
Overall health (Critical, Concerning, Balanced, Healthy or Excellent) and the savings rate.

## Excessive Spending Alerts
The 3 categories with the highest share of expenses, with monthly average and percentage.

## Positive Points
2 or 3 positive aspects of the data.

## Tips to Reduce Spending
One specific tip per significant category, as **Category**: tip with estimated savings.

## Action Plan
3 concrete actions for this week.

## Goal for Next Month
A realistic savings goal with a specific amount.

# RULES
- Always cite amounts and categories from the data
- Show percentages
- Be direct
- Answer in English

# FINANCIAL DATA
%s`,
	LangPortuguese: `# PAPEL
Você é um consultor financeiro pessoal experiente, especializado em orçamento doméstico.

# TAREFA
Analise os dados financeiros abaixo e escreva um relatório personalizado e acionável.

# FORMATO DA RESPOSTA (Markdown, exatamente estas seções)
## Diagnóstico Financeiro
Saúde geral (Crítico, Preocupante, Equilibrado, Saudável ou Excelente) e a taxa de poupança.

## Alertas de Gastos Excessivos
As 3 categorias com maior participação nas despesas, com média mensal e porcentagem.

## Pontos Positivos
2 ou 3 aspectos positivos nos dados.

## Dicas para Reduzir Gastos
Uma dica específica por categoria relevante, no formato **Categoria**: dica com economia estimada.

## Plano de Ação
3 ações concretas para esta semana.

## Meta para o Próximo Mês
Uma meta realista de economia com valor específico.

# REGRAS
- Sempre cite valores e categorias dos dados
- Mostre as porcentagens
- Seja direto
- Responda em português brasileiro

# DADOS FINANCEIROS
%s`,
}
