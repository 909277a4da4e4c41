package tg

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/pvzzle/txrecorder/internal/bus"
	"github.com/pvzzle/txrecorder/internal/coordinator"
	"github.com/pvzzle/txrecorder/internal/ethunits"
	"github.com/pvzzle/txrecorder/internal/storage"
)

// FormatHistory renders the newest limit records, newest first.
func FormatHistory(records []coordinator.TransactionRecord, limit int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🕘 Latest transactions (%d total)\n\n", len(records)))

	shown := 0
	for i := len(records) - 1; i >= 0 && shown < limit; i-- {
		r := records[i]
		shown++

		sb.WriteString(fmt.Sprintf(
			"• %s → %s\n  %s ETH · %s\n",
			shortenHash(r.From.Hex()), shortenHash(r.To.Hex()),
			r.Amount, r.Timestamp,
		))
		if r.Keyword != "" || r.Message != "" {
			sb.WriteString(fmt.Sprintf("  #%s %s\n", r.Keyword, r.Message))
		}
	}

	return sb.String()
}

func FormatSubmissions(items []storage.Submission) string {
	var sb strings.Builder
	sb.WriteString("📒 My submissions\n\n")

	for _, it := range items {
		valWei := new(big.Int)
		_, _ = valWei.SetString(it.AmountWei, 10)

		status := string(it.Status)
		switch it.Status {
		case storage.StatusConfirmed:
			status += " ✅"
		case storage.StatusFailed, storage.StatusPartial:
			status += " ❌"
		}

		bn := ""
		if it.BlockNum != nil {
			bn = fmt.Sprintf(" #%d", *it.BlockNum)
		}

		sb.WriteString(fmt.Sprintf(
			"• %s → %s ETH (%s)%s\n",
			shortenHash(it.Recipient), ethunits.WeiToEthString(valWei), status, bn,
		))
		if it.TransferHash != nil {
			sb.WriteString(fmt.Sprintf("  transfer %s\n", shortenHash(*it.TransferHash)))
		}
		if it.RecordHash != nil {
			sb.WriteString(fmt.Sprintf("  record %s\n", shortenHash(*it.RecordHash)))
		}
	}

	return sb.String()
}

func FormatForm(f coordinator.FormState) string {
	return fmt.Sprintf(
		"📝 Transfer\n\nTo: %s\nAmount: %s ETH\nKeyword: %s\nMessage: %s",
		f.Recipient, f.Amount, orDash(f.Keyword), orDash(f.Message),
	)
}

func FormatNotification(n bus.Notification) string {
	switch n.Level {
	case bus.LevelError:
		return "⚠️ " + n.Text
	case bus.LevelWarning:
		return "🔔 " + n.Text
	default:
		return "ℹ️ " + n.Text
	}
}

func shortenHash(h string) string {
	if len(h) <= 14 {
		return h
	}
	return h[:10] + "…" + h[len(h)-4:]
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
