package dashboard

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/eqtlab/wallet/wallet"
)

const maskedBalance = "••••••••"

type RenderOptions struct {
	Currency    wallet.Currency
	HideBalance bool
	Now         time.Time
}

// Greeting picks the salutation by hour of day and addresses the user by first name.
func Greeting(now time.Time, fullName string) string {
	var part string
	switch h := now.Hour(); {
	case h < 12:
		part = "Morning"
	case h < 18:
		part = "Afternoon"
	default:
		part = "Evening"
	}

	name, _, _ := strings.Cut(strings.TrimSpace(fullName), " ")
	if name == "" {
		return "Good " + part
	}
	return fmt.Sprintf("Good %s, %s", part, name)
}

// Render writes the home screen as text.
func Render(w io.Writer, v View, opts RenderOptions) error {
	switch v.Status {
	case StatusIdle, StatusLoading:
		_, err := fmt.Fprintln(w, "Loading...")
		return err
	case StatusFailed:
		_, err := fmt.Fprintf(w, "Could not load your account: %s\n", wallet.UserMessage(v.Err))
		return err
	}

	balance := opts.Currency.Format(v.Profile.Balance)
	if opts.HideBalance {
		balance = opts.Currency.Code + " " + maskedBalance
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\n", Greeting(opts.Now, v.Profile.FullName))
	fmt.Fprintf(tw, "%s\tPersonal Account\n", v.Profile.FullName)
	fmt.Fprintf(tw, "Account No.\t%s\n", v.Profile.AccountNumber)
	fmt.Fprintf(tw, "Balance\t%s\n", balance)
	if v.RefreshErr != nil {
		fmt.Fprintf(tw, "!\tshowing data from %s: %s\n", v.UpdatedAt.Format(time.Kitchen), wallet.UserMessage(v.RefreshErr))
	}
	fmt.Fprintln(tw)

	if len(v.Transactions) == 0 {
		fmt.Fprintln(tw, "No transactions yet.")
		return tw.Flush()
	}

	fmt.Fprintln(tw, "Date\tName\tType\tNotes\tAmount")
	for _, tx := range v.Transactions {
		kind := "Topup"
		if tx.Type == wallet.Debit {
			kind = "Transfer"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			tx.CreatedAt.Format("02 January 2006"),
			tx.Counterparty,
			kind,
			tx.Description,
			opts.Currency.FormatSigned(tx.Signed()),
		)
	}

	return tw.Flush()
}
