package report

import (
	"credit-ledger/internal/domain/ledger"
	"credit-ledger/internal/pkg/display"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
)

const maxItemChars = 40

var loanColumns = []struct {
	title string
	width float64
	align string
}{
	{"ITEM", 62, "L"},
	{"DUE DATE", 28, "C"},
	{"AMOUNT", 30, "R"},
	{"REPAID", 30, "R"},
	{"REMAINING", 32, "R"},
}

// WriteStatement renders a customer's loans and repayments as a PDF.
// Amounts use the "INR" code because the built-in fonts have no rupee glyph.
func WriteStatement(w io.Writer, detail ledger.CustomerDetail, generatedAt time.Time) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetTitle("CrediKhaata Statement", false)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "CrediKhaata Statement")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.Cell(0, 6, "Customer: "+tr(detail.Customer.Name))
	pdf.Ln(5)
	if detail.Customer.Email != "" {
		pdf.Cell(0, 6, "Email: "+tr(detail.Customer.Email))
		pdf.Ln(5)
	}
	generated := generatedAt.UTC()
	pdf.Cell(0, 6, "Generated: "+display.FormatDate(&generated))
	pdf.Ln(10)

	writeSummary(pdf, detail.Summary)
	writeLoans(pdf, detail.Loans, tr)

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to build statement: %w", err)
	}
	return pdf.Output(w)
}

func writeSummary(pdf *gofpdf.Fpdf, s ledger.StatusSummary) {
	pdf.SetDrawColor(200, 200, 200)
	pdf.SetFillColor(248, 248, 248)
	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 11)

	w := []float64{60, 62, 60}
	pdf.CellFormat(w[0], 10, "Status", "1", 0, "C", true, 0, "")
	pdf.CellFormat(w[1], 10, "Outstanding", "1", 0, "C", true, 0, "")
	pdf.CellFormat(w[2], 10, "Next Due", "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(w[0], 10, string(s.Status), "1", 0, "C", false, 0, "")
	pdf.CellFormat(w[1], 10, display.FormatAmount(s.OutstandingBalance), "1", 0, "C", false, 0, "")
	pdf.CellFormat(w[2], 10, display.FormatDate(s.NextDueDate), "1", 1, "C", false, 0, "")
	pdf.Ln(6)
}

func writeLoanHeader(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(245, 245, 245)
	for i, col := range loanColumns {
		ln := 0
		if i == len(loanColumns)-1 {
			ln = 1
		}
		pdf.CellFormat(col.width, 8, col.title, "1", ln, "C", true, 0, "")
	}
	pdf.SetFont("Helvetica", "", 9)
}

func writeLoans(pdf *gofpdf.Fpdf, loans []ledger.LoanPosition, tr func(string) string) {
	if len(loans) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.Cell(0, 8, "No loans recorded for this customer.")
		return
	}

	writeLoanHeader(pdf)
	for _, pos := range loans {
		if pdf.GetY() > 260 {
			pdf.AddPage()
			writeLoanHeader(pdf)
		}

		due := pos.Loan.DueDate
		item := tr(trimTo(pos.Loan.Item, maxItemChars))
		if pos.Overdue {
			item += " (overdue)"
			pdf.SetTextColor(170, 30, 30)
		} else {
			pdf.SetTextColor(30, 30, 30)
		}
		cells := []string{
			item,
			display.FormatDate(&due),
			display.FormatAmount(pos.Loan.Principal),
			display.FormatAmount(ledger.TotalRepaid(pos.Loan)),
			display.FormatAmount(pos.Remaining),
		}
		for i, col := range loanColumns {
			ln := 0
			if i == len(loanColumns)-1 {
				ln = 1
			}
			pdf.CellFormat(col.width, 8, cells[i], "1", ln, col.align, false, 0, "")
		}

		pdf.SetTextColor(90, 90, 90)
		for _, r := range pos.Loan.Repayments {
			paidOn := r.Date
			pdf.CellFormat(loanColumns[0].width, 6, "   paid "+display.FormatDate(&paidOn), "LR", 0, "L", false, 0, "")
			pdf.CellFormat(0, 6, display.FormatAmount(r.Amount), "R", 1, "L", false, 0, "")
		}
	}
	pdf.SetTextColor(20, 20, 20)
}

func trimTo(s string, n int) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
