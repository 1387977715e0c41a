package payments

import (
	"errors"
	"fmt"
	"time"

	"github.com/decorstudio/platform/libs/money"
	"github.com/decorstudio/platform/services/billing-service/internal/model"
)

// ErrScheduleInconsistent means the quote total no longer covers what has
// already been paid, or unpaid installments cannot absorb the difference.
var ErrScheduleInconsistent = errors.New("payment schedule inconsistent with quote total")

// Installment is a planned schedule entry before it is stored.
type Installment struct {
	Label  string
	Amount int64
}

// SchedulePolicy is the default deposit-plus-balance split.
type SchedulePolicy struct {
	DepositPercent     int
	BalanceInstallment int
}

func (p SchedulePolicy) Validate() error {
	if p.DepositPercent < 0 || p.DepositPercent > 100 {
		return fmt.Errorf("deposit percent must be within 0..100, got %d", p.DepositPercent)
	}
	if p.DepositPercent < 100 && p.BalanceInstallment < 1 {
		return fmt.Errorf("at least one balance installment is required, got %d", p.BalanceInstallment)
	}
	return nil
}

// SplitDefault splits total into a deposit and equal balance installments.
// The deposit is rounded half up and the last installment absorbs every
// rounding remainder, so the amounts always sum to total.
func SplitDefault(total int64, p SchedulePolicy) ([]Installment, error) {
	if total <= 0 {
		return nil, fmt.Errorf("quote total must be positive, got %d", total)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var out []Installment
	deposit := money.PercentOf(total, p.DepositPercent)
	if deposit > 0 {
		out = append(out, Installment{Label: fmt.Sprintf("Deposit (%d%%)", p.DepositPercent), Amount: deposit})
	}
	balance := total - deposit
	if balance == 0 {
		return out, nil
	}
	n := int64(p.BalanceInstallment)
	each := balance / n
	for i := int64(1); i <= n; i++ {
		amount := each
		if i == n {
			amount = balance - each*(n-1)
		}
		label := "Balance"
		if n > 1 {
			label = fmt.Sprintf("Balance %d/%d", i, n)
		}
		out = append(out, Installment{Label: label, Amount: amount})
	}
	return out, nil
}

// Redistribute spreads newTotal minus the paid amounts over the unpaid
// installments in proportion to their current amounts (equally when those
// are all zero). Paid installments keep their amounts and every unpaid one
// must stay strictly positive, since a zero installment can never be
// checked out or invoiced. The result maps installment id to its new
// amount and covers unpaid installments only.
func Redistribute(schedule []model.QuotePayment, newTotal int64) (map[string]int64, error) {
	var (
		paid    int64
		unpaid  []model.QuotePayment
		oldSum  int64
		updated = map[string]int64{}
	)
	for _, p := range schedule {
		if p.Status == model.PaymentPaid {
			paid += p.Amount
			continue
		}
		unpaid = append(unpaid, p)
		oldSum += p.Amount
	}
	remaining := newTotal - paid
	if remaining < 0 {
		return nil, fmt.Errorf("%w: total %d is below the %d already paid", ErrScheduleInconsistent, newTotal, paid)
	}
	if len(unpaid) == 0 {
		if remaining != 0 {
			return nil, fmt.Errorf("%w: every installment is paid but %d remains", ErrScheduleInconsistent, remaining)
		}
		return updated, nil
	}

	n := int64(len(unpaid))
	var assigned int64
	for i, p := range unpaid {
		var amount int64
		switch {
		case i == len(unpaid)-1:
			amount = remaining - assigned
		case oldSum == 0:
			amount = remaining / n
		default:
			amount = money.Prorate(remaining, p.Amount, oldSum)
		}
		if amount <= 0 {
			return nil, fmt.Errorf("%w: %d left to pay cannot cover %d open installments", ErrScheduleInconsistent, remaining, n)
		}
		updated[p.ID] = amount
		assigned += amount
	}
	return updated, nil
}

// Summarize derives the payment summary of a quote. A quote without a
// schedule reports "none" unless it was paid in one go.
func Summarize(q model.Quote, schedule []model.QuotePayment) model.QuotePaymentSummary {
	s := model.QuotePaymentSummary{TotalPayments: len(schedule)}
	if len(schedule) == 0 {
		s.Total = q.AmountTotal
		s.PaymentStatus = model.SummaryNone
		if q.Status == model.QuotePaid {
			s.TotalPaid = q.AmountTotal
			if q.PaidAmount != nil {
				s.TotalPaid = *q.PaidAmount
			}
			s.PaymentStatus = model.SummaryPaid
		}
		s.RemainingAmount = max(s.Total-s.TotalPaid, 0)
		return s
	}
	for _, p := range schedule {
		s.Total += p.Amount
		if p.Status == model.PaymentPaid {
			s.PaidPayments++
			s.TotalPaid += p.Amount
		}
	}
	s.RemainingAmount = s.Total - s.TotalPaid
	switch {
	case s.PaidPayments == 0:
		s.PaymentStatus = model.SummaryUnpaid
	case s.PaidPayments == s.TotalPayments:
		s.PaymentStatus = model.SummaryPaid
	default:
		s.PaymentStatus = model.SummaryPartial
	}
	return s
}

// DeriveEffectiveStatus is the status every read site must use: a sent
// quote past its expiry reads as expired.
func DeriveEffectiveStatus(q model.Quote, now time.Time) string {
	if q.Status == model.QuoteSent && q.ExpiresAt != nil && !now.Before(*q.ExpiresAt) {
		return model.QuoteExpired
	}
	return q.Status
}

func quoteViewable(status string) bool {
	switch status {
	case model.QuoteSent, model.QuoteAccepted, model.QuotePaid:
		return true
	}
	return false
}
