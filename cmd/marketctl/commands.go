package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/unique-nft/marketgate/internal/amount"
	"github.com/unique-nft/marketgate/internal/auction"
	"github.com/unique-nft/marketgate/internal/balance"
	"github.com/unique-nft/marketgate/internal/cache"
	"github.com/unique-nft/marketgate/internal/marketplace"
	"github.com/unique-nft/marketgate/internal/model"
	"github.com/unique-nft/marketgate/internal/pagination"
	"github.com/unique-nft/marketgate/internal/pkg/httpx"
	"github.com/unique-nft/marketgate/internal/service"
	"github.com/unique-nft/marketgate/internal/signer"
)

var (
	quoteFlags    quoteArgs
	bidFlags      bidArgs
	withdrawFlags signArgs
	cancelFlags   signArgs
	tradesFlags   tradesArgs
	pagesFlags    pagesArgs
)

func init() {
	quoteFlags.bind(quoteCmd.Flags())
	quoteCmd.Flags().StringVar(&quoteFlags.Bidder, "bidder", "", "Bidder SS58 address")

	bidFlags.bind(bidCmd.Flags())
	bidCmd.Flags().StringVar(&bidFlags.Bidder, "bidder", "", "Bidder SS58 address")
	bidCmd.Flags().StringVar(&bidFlags.Amount, "amount", "", "Bid amount in KSM")
	bidCmd.Flags().StringVar(&bidFlags.Transfer, "transfer", "", "Signed escrow transfer extrinsic (hex)")

	for _, sc := range []struct {
		cmd  *cobra.Command
		args *signArgs
	}{{withdrawCmd, &withdrawFlags}, {cancelCmd, &cancelFlags}} {
		sc.args.bind(sc.cmd.Flags())
		sc.cmd.Flags().StringVar(&sc.args.Key, "key", os.Getenv("MARKETGATE_SIGNER_PRIVATE_KEY"), "Hex private key to sign with")
		sc.cmd.Flags().StringVar(&sc.args.Address, "address", "", "Signer address of a presigned request")
		sc.cmd.Flags().Int64Var(&sc.args.Timestamp, "timestamp", 0, "Timestamp (ms) of a presigned request")
		sc.cmd.Flags().StringVar(&sc.args.Signature, "signature", "", "Signature of a presigned request")
	}

	tradesCmd.Flags().IntVar(&tradesFlags.Page, "page", 1, "Page number")
	tradesCmd.Flags().IntVar(&tradesFlags.PerPage, "per-page", 0, "Trades per page (0 uses the configured default)")
	tradesCmd.Flags().StringVar(&tradesFlags.Sort, "sort", "desc(TradeDate)", "Sort expression, e.g. asc(Price)")
	tradesCmd.Flags().StringVar(&tradesFlags.Account, "account", "", "Only trades of this account")

	pagesCmd.Flags().IntVar(&pagesFlags.Items, "items", 0, "Total number of items")
	pagesCmd.Flags().IntVar(&pagesFlags.PerPage, "per-page", 10, "Items per page")
	pagesCmd.Flags().IntVar(&pagesFlags.Page, "page", 1, "Current page")
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Print the marketplace settings",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		s, err := settingsStore().Resolve(ctx)
		if err != nil {
			return err
		}
		return printJSON(s)
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance <address>",
	Short: "Show the Unique and Kusama balances of an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		unique, err := dialChain(ctx, "unique", cfg.Chains.Unique)
		if err != nil {
			return err
		}
		defer unique.Close()
		kusama, err := dialChain(ctx, "kusama", cfg.Chains.Kusama)
		if err != nil {
			return err
		}
		defer kusama.Close()

		svc := balance.NewService(unique, kusama, cache.NewMemory(time.Minute), 0, cfg.Balance.DisplayDigits)
		b, err := svc.Fetch(ctx, args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CHAIN\tADDRESS\tBALANCE\tRESERVED")
		for _, cb := range []model.ChainBalance{b.Unique, b.Kusama} {
			if cb.Error != "" {
				fmt.Fprintf(w, "%s\t%s\terror: %s\t\n", cb.Chain, cb.Address, cb.Error)
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\n", cb.Chain, cb.Address, cb.Display, cb.Symbol,
				amount.AdaptiveFixed(cb.Reserved, cfg.Balance.DisplayDigits))
		}
		return w.Flush()
	},
}

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Ask the auction backend what a bid on a token costs",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		if err := validate.Struct(quoteFlags); err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		svc := service.NewBidService(auctionClient(settingsStore()), nil, nil, nil, nil, 0)
		q, err := svc.Quote(ctx, quoteFlags.CollectionID, quoteFlags.TokenID, quoteFlags.Bidder)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "start bid\t%s\n", q.StartBid)
		fmt.Fprintf(w, "contract price\t%s\n", q.ContractPendingPrice)
		fmt.Fprintf(w, "price step\t%s\n", q.PriceStep)
		fmt.Fprintf(w, "min bidder amount\t%s\n", q.MinBidderAmount)
		fmt.Fprintf(w, "already pending\t%s\n", q.BidderPendingAmount)
		return w.Flush()
	},
}

var bidCmd = &cobra.Command{
	Use:   "bid",
	Short: "Submit a signed escrow transfer and record the bid",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		if err := validate.Struct(bidFlags); err != nil {
			return err
		}
		bidAmount, err := decimal.NewFromString(bidFlags.Amount)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		store := settingsStore()
		if _, err := store.Resolve(ctx); err != nil {
			return err
		}
		unique, err := dialChain(ctx, "unique", cfg.Chains.Unique)
		if err != nil {
			return err
		}
		defer unique.Close()

		svc := service.NewBidService(auctionClient(store), unique, nil, store, nil, 0)
		bid, err := svc.PlaceBid(ctx, model.PlaceBidRequest{
			CollectionID:  bidFlags.CollectionID,
			TokenID:       bidFlags.TokenID,
			BidderAddress: bidFlags.Bidder,
			Amount:        bidAmount,
			Transfer:      bidFlags.Transfer,
		})
		if err != nil {
			return err
		}
		if bid.Status != model.BidRecorded {
			fmt.Fprintln(os.Stderr, "transfer is on chain but the auction backend has not recorded the bid yet")
		}
		return printJSON(bid)
	},
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw",
	Short: "Withdraw your bids on a token",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		return runSigned(withdrawFlags, func(cl *auction.Client, a signArgs, s signer.Signer, q auction.SignedQuery) error {
			ctx, cancel := commandContext()
			defer cancel()
			if s != nil {
				return cl.WithdrawBids(ctx, s, a.CollectionID, a.TokenID, auction.WithWaiting(waiting))
			}
			return cl.WithdrawBidsSigned(ctx, q, auction.WithWaiting(waiting))
		})
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel an auction you started",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		return runSigned(cancelFlags, func(cl *auction.Client, a signArgs, s signer.Signer, q auction.SignedQuery) error {
			ctx, cancel := commandContext()
			defer cancel()
			if s != nil {
				return cl.CancelAuction(ctx, s, a.CollectionID, a.TokenID, auction.WithWaiting(waiting))
			}
			return cl.CancelAuctionSigned(ctx, q, auction.WithWaiting(waiting))
		})
	},
}

func runSigned(a signArgs, call func(*auction.Client, signArgs, signer.Signer, auction.SignedQuery) error) error {
	if err := validate.Struct(a); err != nil {
		return err
	}

	var (
		s signer.Signer
		q auction.SignedQuery
	)
	if a.Signature == "" {
		ks, err := signer.NewKeySigner(a.Key, cfg.Chains.Unique.SS58Prefix)
		if err != nil {
			return err
		}
		s = ks
	} else {
		q = auction.SignedQuery{
			CollectionID: a.CollectionID,
			TokenID:      a.TokenID,
			Timestamp:    a.Timestamp,
			Address:      a.Address,
			Signature:    a.Signature,
		}
	}

	if err := call(auctionClient(settingsStore()), a, s, q); err != nil {
		return err
	}
	fmt.Println("done")
	return nil
}

func waiting(on bool) {
	if on {
		fmt.Fprint(os.Stderr, "waiting for the auction backend... ")
		return
	}
	fmt.Fprintln(os.Stderr)
}

var tradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "List trade history",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		if err := validate.Struct(tradesFlags); err != nil {
			return err
		}
		sort, err := pagination.ParseSort(tradesFlags.Sort)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		source := marketplace.NewClient(cfg.Marketplace.APIURL, cfg.Marketplace.TradesPath, httpx.NewClient(cfg.Auction.RequestTimeout()))
		svc := service.NewTradeService(source, nil, cfg.Pagination.PerPage, cfg.Pagination.MaxPerPage)
		page, err := svc.List(ctx, model.TradeQuery{
			Page:    tradesFlags.Page,
			PerPage: tradesFlags.PerPage,
			Sort:    sort,
			Account: tradesFlags.Account,
		})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tTOKEN\tPRICE\tBUYER\tSELLER")
		for _, t := range page.Items {
			fmt.Fprintf(w, "%s\t%d/%d\t%s\t%s\t%s\n",
				humanize.Time(t.TradeDate), t.CollectionID, t.TokenID,
				amount.AdaptiveFixed(t.Price, cfg.Balance.DisplayDigits), t.Buyer, t.Seller)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\n%s trades, pages: %s\n", humanize.Comma(int64(page.ItemsCount)), strip(page.Pages, page.Page))
		return nil
	},
}

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "Print the page strip for a result size",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		if err := validate.Struct(pagesFlags); err != nil {
			return err
		}
		res, err := pagination.Pages(pagesFlags.Items, pagesFlags.PerPage, pagesFlags.Page)
		if err != nil {
			return err
		}
		fmt.Println(strip(res.Items, res.Page))
		return nil
	},
}
