package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"visionmatch/internal/client"
	"visionmatch/internal/models"
	"visionmatch/internal/negotiation"
)

func pricingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pricing <base>",
		Short: "Show the fee and GST breakdown for a base amount",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, ok := negotiation.ParsePrice(args[0])
			if !ok || base <= 0 {
				return fmt.Errorf("invalid amount %q", args[0])
			}
			printPricing(cmd.OutOrStdout(), negotiation.ComputePricing(base))
			return nil
		},
	}
}

func requestCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "request <requestId>",
		Short: "Show a project request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := g.client().GetRequest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "ID\t%s\n", req.ID)
			fmt.Fprintf(w, "Status\t%s\n", req.Status)
			fmt.Fprintf(w, "Client\t%s\n", req.ClientID)
			fmt.Fprintf(w, "Creator\t%s\n", req.CreatorID)
			if req.Package != nil {
				fmt.Fprintf(w, "Package\t%s (%s)\n", req.Package.Name, req.Package.Price)
			}
			if req.CurrentOffer != nil {
				fmt.Fprintf(w, "Current offer\t%s from %s\n", formatRupees(req.CurrentOffer.Price), req.CurrentOffer.From)
			}
			if req.FinalOffer != nil {
				fmt.Fprintf(w, "Final offer\t%s, %s\n", formatRupees(req.FinalOffer.Price), req.FinalOffer.Deliverables)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(out)
			printPricing(out, negotiation.ComputePricing(negotiation.BasePrice(req)))
			return nil
		},
	}
}

func respondCmd(g *globals) *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "respond <requestId> <accept|negotiate|decline>",
		Short: "Answer a pending request as its creator",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := negotiation.ParseAction(args[1])
			if err != nil {
				return err
			}
			res, err := g.client().UpdateRequestStatus(cmd.Context(), args[0], action, message)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Request %s is now %s\n", res.Request.ID, res.Request.Status)
			if res.ChatPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Continue in %s\n", res.ChatPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "Note for the client")
	return cmd
}

func messagesCmd(g *globals) *cobra.Command {
	var after string
	cmd := &cobra.Command{
		Use:   "messages <requestId>",
		Short: "Print a request's negotiation feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			feed, err := g.client().GetNegotiationMessages(cmd.Context(), args[0], client.FeedOptions{After: after})
			if err != nil {
				return err
			}
			for i := range feed.Messages {
				printMessage(cmd.OutOrStdout(), &feed.Messages[i])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&after, "after", "", "Only show messages newer than this id")
	return cmd
}

func sendCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "send <requestId> <text>...",
		Short: "Post a text message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := g.client().SendNegotiationMessage(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			printMessage(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

// offerCmd builds "offer" or, when counter is set, "counter".
func offerCmd(g *globals, counter bool) *cobra.Command {
	var (
		price        string
		deliverables string
		message      string
	)
	use, short := "offer", "Make an opening offer"
	if counter {
		use, short = "counter", "Counter the other party's latest offer"
	}
	cmd := &cobra.Command{
		Use:   use + " <requestId>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, ok := negotiation.ParsePrice(price)
			if !ok {
				return fmt.Errorf("invalid price %q", price)
			}
			c := g.client()
			post := c.MakeOffer
			if counter {
				post = c.CounterOffer
			}
			msg, err := post(cmd.Context(), args[0], amount, deliverables, message)
			if err != nil {
				return err
			}
			printMessage(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().StringVarP(&price, "price", "p", "", "Offer price in rupees, e.g. 27000 or ₹27,000")
	cmd.Flags().StringVarP(&deliverables, "deliverables", "d", "", "What the price covers")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Optional note")
	_ = cmd.MarkFlagRequired("price")
	_ = cmd.MarkFlagRequired("deliverables")
	return cmd
}

func acceptCmd(g *globals) *cobra.Command {
	var (
		price        string
		deliverables string
	)
	cmd := &cobra.Command{
		Use:   "accept <requestId>",
		Short: "Accept the other party's latest offer",
		Long: `Accept closes the negotiation on the other party's latest offer or counter.
Pass --price or --deliverables to make sure the terms have not changed
since you last looked; the server rejects a mismatch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var expected *int64
			if price != "" {
				amount, ok := negotiation.ParsePrice(price)
				if !ok {
					return fmt.Errorf("invalid price %q", price)
				}
				expected = &amount
			}
			msg, err := g.client().AcceptOffer(cmd.Context(), args[0], expected, deliverables)
			if err != nil {
				return err
			}
			printMessage(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().StringVarP(&price, "price", "p", "", "Expected price")
	cmd.Flags().StringVarP(&deliverables, "deliverables", "d", "", "Expected deliverables")
	return cmd
}

func negotiationCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "negotiation <requestId>",
		Short: "Show the negotiation from your side",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := g.client().GetNegotiation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Viewing as\t%s\n", n.Viewer)
			fmt.Fprintf(w, "Status\t%s\n", n.Status)
			fmt.Fprintf(w, "Offer to you\t%s\n", describeOffer(n.CurrentOffer))
			fmt.Fprintf(w, "Latest offer\t%s\n", describeOffer(n.LatestOffer))
			if n.AcceptedOffer != nil {
				fmt.Fprintf(w, "Agreed\t%s\n", describeOffer(n.AcceptedOffer))
			}
			if len(n.AvailableActions) > 0 {
				actions := make([]string, len(n.AvailableActions))
				for i, a := range n.AvailableActions {
					actions[i] = string(a)
				}
				fmt.Fprintf(w, "Actions\t%s\n", strings.Join(actions, ", "))
			}
			fmt.Fprintf(w, "Messages\t%d\n", n.MessageCount)
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(out)
			printPricing(out, n.Pricing)
			return nil
		},
	}
}

func paymentStatusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "payment-status <requestId>",
		Short: "Show the escrow payment for a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := g.client().GetPaymentStatusByRequest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if p == nil {
				fmt.Fprintln(out, "No payment yet")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Payment\t%s\n", p.ID)
			fmt.Fprintf(w, "Status\t%s\n", p.Status)
			fmt.Fprintf(w, "Amount\t%s\n", formatRupees(p.Amount))
			fmt.Fprintf(w, "Creator share\t%s\n", formatRupees(p.BaseAmount))
			return w.Flush()
		},
	}
}

func printPricing(out io.Writer, p negotiation.Pricing) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "Base\t%s\t\n", formatRupees(p.Base))
	fmt.Fprintf(w, "Platform fee (10%%)\t%s\t\n", formatRupees(p.PlatformFee))
	fmt.Fprintf(w, "Subtotal\t%s\t\n", formatRupees(p.Subtotal))
	fmt.Fprintf(w, "GST (18%%)\t%s\t\n", formatRupees(p.GST))
	fmt.Fprintf(w, "Total\t%s\t\n", formatRupees(p.Total))
	_ = w.Flush()
}

func printMessage(out io.Writer, m *models.NegotiationMessage) {
	ts := "-"
	if !m.Timestamp.IsZero() {
		ts = m.Timestamp.Local().Format("02 Jan 15:04")
	}
	switch {
	case m.Type.IsOffer(), m.Type == models.MessageAccepted:
		terms := "latest offer"
		if m.Price != nil {
			terms = formatRupees(*m.Price)
			if m.Deliverables != "" {
				terms += " for " + m.Deliverables
			}
		}
		fmt.Fprintf(out, "[%s] %s %s: %s", ts, m.Sender, m.Type, terms)
		if m.Text != "" && m.Type != models.MessageAccepted {
			fmt.Fprintf(out, " (%s)", m.Text)
		}
		fmt.Fprintln(out)
	default:
		fmt.Fprintf(out, "[%s] %s: %s\n", ts, m.Sender, m.Text)
	}
}

func describeOffer(o *models.Offer) string {
	if o == nil {
		return "none"
	}
	s := formatRupees(o.Price)
	if o.Deliverables != "" {
		s += " for " + o.Deliverables
	}
	if o.From != "" {
		s += " (" + string(o.From) + ")"
	}
	return s
}

// formatRupees groups digits the Indian way: ₹1,23,456.
func formatRupees(n int64) string {
	sign := ""
	if n < 0 {
		sign, n = "-", -n
	}
	digits := strconv.FormatInt(n, 10)
	if len(digits) <= 3 {
		return sign + "₹" + digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	groups = append([]string{head}, groups...)
	return sign + "₹" + strings.Join(groups, ",") + "," + tail
}
