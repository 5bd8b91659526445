package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/shkarik/ordering/internal/cart"
	"github.com/shkarik/ordering/internal/client"
	"github.com/shkarik/ordering/internal/confirm"
	"github.com/shkarik/ordering/internal/intake"
	"github.com/shkarik/ordering/internal/lifecycle"
	"github.com/shkarik/ordering/internal/poll"
	"github.com/shkarik/ordering/pkg/models"
)

// boardctl is the terminal counterpart of the role web views: the chef board,
// the courier board and the customer storefront, each driven by the same API.
func main() {
	var (
		serverURL = flag.String("server", envOr("ORDERD_URL", "http://localhost:8080"), "ordering service base URL")
		role      = flag.String("role", "customer", "board to run: chef, courier or customer")
		code      = flag.String("code", "", "access code for chef or courier boards")
		cartPath  = flag.String("cart", defaultCartPath(), "cart file for the customer board")
		verbose   = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{})
	logger.SetLevel(logrus.WarnLevel)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	api := client.New(*serverURL, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var err error
	switch *role {
	case "chef":
		err = runBoard(ctx, api, lifecycle.RoleChef, *code, logger)
	case "courier":
		err = runBoard(ctx, api, lifecycle.RoleCourier, *code, logger)
	case "customer":
		err = runCustomer(ctx, api, *cartPath, logger)
	default:
		err = fmt.Errorf("unknown role %q", *role)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "boardctl:", err)
		os.Exit(1)
	}
}

// runBoard logs the role in, keeps the feed synchronized in the background
// and feeds stdin commands through the confirmation gate.
func runBoard(ctx context.Context, api *client.Client, role lifecycle.Role, code string, logger *logrus.Logger) error {
	if code == "" {
		return fmt.Errorf("-code is required for the %s board", role)
	}
	if err := api.Login(ctx, role, code); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	onSnapshot := func(orders []models.OrderSummary) { printSnapshot(role, orders) }
	onUnauthorized := func() {
		fmt.Println("Session expired, log in again.")
	}

	var sync *poll.Synchronizer
	if role == lifecycle.RoleChef {
		sync = poll.NewChef(api, onSnapshot, onUnauthorized, logger)
	} else {
		sync = poll.NewCourier(api, code, onSnapshot, onUnauthorized, logger)
	}
	go sync.Run(ctx)
	defer sync.Stop()

	gate := confirm.NewGate()
	fmt.Printf("%s board connected. Commands: cook/ready/take/done/cancel <code>, quit.\n", role)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		verb, target, ok := splitCommand(scanner.Text())
		if !ok {
			continue
		}
		if verb == "quit" || verb == "exit" {
			return nil
		}

		status, known := map[string]models.Status{
			"cook":   models.StatusCooking,
			"ready":  models.StatusReady,
			"take":   models.StatusDelivering,
			"done":   models.StatusCompleted,
			"cancel": models.StatusCancelled,
		}[verb]
		if !known {
			fmt.Println("Unknown command:", verb)
			continue
		}

		req := models.UpdateStatusRequest{PublicCode: target, Status: status}
		if status == models.StatusDelivering {
			req.AcceptedBy = code
		}

		res, err := gate.Trigger(ctx, target, verb, func(ctx context.Context) error {
			return api.UpdateStatus(ctx, req)
		})
		switch {
		case err != nil:
			fmt.Println("Rejected:", err)
		case res.Outcome == confirm.Armed:
			fmt.Printf("Press again within %s to confirm %s %s.\n", confirm.Window, verb, target)
		default:
			fmt.Printf("Order %s -> %s.\n", target, status)
		}
	}
	return scanner.Err()
}

func printSnapshot(role lifecycle.Role, orders []models.OrderSummary) {
	if role == lifecycle.RoleCourier {
		if active := poll.ActiveDelivery(orders); active != nil {
			fmt.Printf("-- delivering %s to %s (%s), %d som\n",
				active.PublicCode, active.Address, active.ClientPhone, active.TotalPrice)
			return
		}
		orders = poll.ReadyOrders(orders)
	}

	fmt.Printf("-- %d orders\n", len(orders))
	for _, o := range orders {
		line := fmt.Sprintf("%s  %-10s  %s  %d som", o.PublicCode, o.Status, o.ClientName, o.TotalPrice)
		if o.ScheduledTime != "" {
			line += "  at " + o.ScheduledTime
		}
		fmt.Println(line)
		for _, item := range o.Items {
			fmt.Printf("    %dx %s\n", item.Quantity, item.Name)
		}
	}
}

// runCustomer drives the storefront: a file-backed cart plus the checkout
// intake, and tracking by secret code after submission.
func runCustomer(ctx context.Context, api *client.Client, cartPath string, logger *logrus.Logger) error {
	basket, err := cart.Load(cart.NewFileStorage(cartPath))
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}
	checkout := intake.New(api, basket, logger)

	fmt.Println("Customer board. Commands: add <price> <name>, qty <n> <delta>, rm <n>, list,")
	fmt.Println("  submit <name>;<phone>;<delivery|pickup>[;address], track <secret>, cancel <secret>, quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		verb, rest, ok := splitCommand(scanner.Text())
		if !ok {
			continue
		}

		switch verb {
		case "quit", "exit":
			return nil

		case "add":
			price, name, ok := splitCommand(rest)
			if !ok {
				fmt.Println("Usage: add <price> <name>")
				continue
			}
			p, err := strconv.Atoi(price)
			if err != nil || p <= 0 {
				fmt.Println("Bad price:", price)
				continue
			}
			basket.Add(models.CartItem{Name: name, Price: p, Quantity: 1})
			fmt.Println("Added", name)

		case "qty":
			fields := strings.Fields(rest)
			if len(fields) != 2 {
				fmt.Println("Usage: qty <line> <delta>")
				continue
			}
			line, _ := strconv.Atoi(fields[0])
			delta, _ := strconv.Atoi(fields[1])
			if err := basket.ChangeQuantity(line, delta); err != nil {
				fmt.Println(err)
			}

		case "rm":
			line, _ := strconv.Atoi(rest)
			if err := basket.Remove(line); err != nil {
				fmt.Println(err)
			}

		case "list":
			for i, item := range basket.Items() {
				fmt.Printf("%d: %dx %s (%d som)\n", i, item.Quantity, item.Name, item.Price)
			}
			fmt.Printf("Total with delivery: %d som\n", basket.Total(true))

		case "submit":
			form, err := parseForm(rest)
			if err != nil {
				fmt.Println(err)
				continue
			}
			secret, err := checkout.Submit(ctx, form)
			if err != nil {
				fmt.Println("Submission failed:", err)
				continue
			}
			fmt.Println("Order accepted. Track and cancel with secret code:", secret)

		case "track":
			order, err := api.OrderBySecret(ctx, rest)
			if err != nil {
				fmt.Println(err)
				continue
			}
			fmt.Printf("Order %s: %s, %d som\n", order.PublicCode, order.Status, order.TotalPrice)

		case "cancel":
			if err := api.CancelOrder(ctx, rest); err != nil {
				fmt.Println(err)
				continue
			}
			fmt.Println("Order cancelled.")

		default:
			fmt.Println("Unknown command:", verb)
		}
	}
	return scanner.Err()
}

func parseForm(raw string) (intake.Form, error) {
	parts := strings.Split(raw, ";")
	if len(parts) < 3 {
		return intake.Form{}, fmt.Errorf("usage: submit <name>;<phone>;<delivery|pickup>[;address]")
	}

	form := intake.Form{
		Name:  strings.TrimSpace(parts[0]),
		Phone: strings.TrimSpace(parts[1]),
	}
	switch strings.TrimSpace(parts[2]) {
	case "delivery":
		form.DeliveryType = models.DeliveryDelivery
	case "pickup":
		form.DeliveryType = models.DeliveryPickup
	default:
		return intake.Form{}, fmt.Errorf("delivery type must be delivery or pickup")
	}
	if len(parts) > 3 {
		form.Address = strings.TrimSpace(parts[3])
	}
	return form, nil
}

func splitCommand(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", "", false
	}
	verb, rest, _ := strings.Cut(line, " ")
	return verb, strings.TrimSpace(rest), true
}

func defaultCartPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "cart.json"
	}
	return filepath.Join(home, ".ordering-cart.json")
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
