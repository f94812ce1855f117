package ledger

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"
)

// Delta is the signed contribution of one entry: credit-debit for suppliers
// (payable) and debit-credit for customers (receivable).
func Delta(partyType PartyType, debit, credit decimal.Decimal) decimal.Decimal {
	if partyType == PartySupplier {
		return credit.Sub(debit)
	}
	return debit.Sub(credit)
}

// ComputeBalance folds entries in creation order. An empty ledger balances to zero.
func ComputeBalance(partyType PartyType, entries []Entry) decimal.Decimal {
	lines := RunningBalances(partyType, decimal.Zero, entries)
	if len(lines) == 0 {
		return decimal.Zero
	}
	return lines[len(lines)-1].Balance
}

// RunningBalances returns entries ordered by creation time with the cumulative
// balance after each, starting from opening. The input slice is not modified.
func RunningBalances(partyType PartyType, opening decimal.Decimal, entries []Entry) []StatementLine {
	ordered := slices.Clone(entries)
	slices.SortStableFunc(ordered, func(a, b Entry) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	lines := make([]StatementLine, 0, len(ordered))
	running := opening
	for _, e := range ordered {
		running = running.Add(Delta(partyType, e.Debit, e.Credit))
		lines = append(lines, StatementLine{Entry: e, Balance: running})
	}
	return lines
}

// GroupTotals sums debit and credit per party.
func GroupTotals(entries []Entry) []PartyTotal {
	index := make(map[int64]int)
	var totals []PartyTotal
	for _, e := range entries {
		i, ok := index[e.PartyID]
		if !ok {
			i = len(totals)
			index[e.PartyID] = i
			totals = append(totals, PartyTotal{PartyID: e.PartyID})
		}
		totals[i].Debit = totals[i].Debit.Add(e.Debit)
		totals[i].Credit = totals[i].Credit.Add(e.Credit)
	}
	return totals
}

// OutstandingFromTotals clamps each party's balance at zero and sorts descending
// by outstanding amount, ties broken by party id.
func OutstandingFromTotals(partyType PartyType, totals []PartyTotal) []Outstanding {
	rows := make([]Outstanding, 0, len(totals))
	for _, t := range totals {
		amount := Delta(partyType, t.Debit, t.Credit)
		if amount.IsNegative() {
			amount = decimal.Zero
		}
		rows = append(rows, Outstanding{
			PartyID:     t.PartyID,
			TotalDebit:  t.Debit,
			TotalCredit: t.Credit,
			Outstanding: amount,
		})
	}
	slices.SortFunc(rows, func(a, b Outstanding) int {
		if c := b.Outstanding.Cmp(a.Outstanding); c != 0 {
			return c
		}
		return cmp.Compare(a.PartyID, b.PartyID)
	})
	return rows
}

// AggregateOutstanding groups entries by party and returns clamped outstanding amounts.
func AggregateOutstanding(partyType PartyType, entries []Entry) []Outstanding {
	return OutstandingFromTotals(partyType, GroupTotals(entries))
}

// Direction decides which side an amount posts to for the party and entry type.
// Adjustments take a signed amount where positive increases the balance owed.
func Direction(partyType PartyType, entryType EntryType, amount decimal.Decimal) (debit, credit decimal.Decimal, err error) {
	if !partyType.Valid() {
		return decimal.Zero, decimal.Zero, ErrInvalidPartyType
	}
	if amount.IsZero() {
		return decimal.Zero, decimal.Zero, ErrInvalidAmount
	}
	if entryType != EntryAdjustment && amount.IsNegative() {
		return decimal.Zero, decimal.Zero, ErrInvalidAmount
	}
	supplier := partyType == PartySupplier
	switch entryType {
	case EntryPayment:
		if supplier {
			return amount, decimal.Zero, nil
		}
		return decimal.Zero, amount, nil
	case EntryRefund:
		if supplier {
			return decimal.Zero, amount, nil
		}
		return amount, decimal.Zero, nil
	case EntryInvoice:
		if supplier {
			return decimal.Zero, decimal.Zero, ErrEntryNotAllowed
		}
		return amount, decimal.Zero, nil
	case EntryPurchase:
		if !supplier {
			return decimal.Zero, decimal.Zero, ErrEntryNotAllowed
		}
		return decimal.Zero, amount, nil
	case EntryAdjustment:
		increase := amount.IsPositive()
		abs := amount.Abs()
		if increase == supplier {
			return decimal.Zero, abs, nil
		}
		return abs, decimal.Zero, nil
	default:
		return decimal.Zero, decimal.Zero, ErrInvalidEntryType
	}
}
