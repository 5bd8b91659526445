package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/shkarik/ordering/internal/lifecycle"
	"github.com/shkarik/ordering/pkg/models"
)

var (
	// ErrUnauthorized marks an expired or missing session; callers redirect
	// to the role's login instead of retrying.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConnectivity marks transport failures: the request may not have
	// reached the server at all.
	ErrConnectivity = errors.New("connectivity failure")
)

// ServerError carries a failure the server reported in a well-formed
// response, verbatim.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return e.Message }

// Client talks to the ordering service. It keeps the session cookie handed
// out at login, so one client per role view.
type Client struct {
	http   *resty.Client
	logger *logrus.Logger
}

func New(baseURL string, logger *logrus.Logger) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10 * time.Second),
		logger: logger,
	}
}

// Login opens a chef or courier session; the session cookie is retained on
// the underlying client.
func (c *Client) Login(ctx context.Context, role lifecycle.Role, code string) error {
	var status models.StatusResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(models.LoginRequest{Code: code}).
		SetResult(&status).
		SetError(&status).
		Post("/" + string(role) + "/login/")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return &ServerError{Message: status.Error}
	}
	if !status.Success {
		return &ServerError{Message: status.Error}
	}

	c.http.SetCookies(resp.Cookies())
	return nil
}

func (c *Client) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.CreateOrderResponse, error) {
	var result models.CreateOrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&result).
		Post("/create-order/")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}

	c.logger.WithFields(logrus.Fields{
		"status":  resp.StatusCode(),
		"success": result.Success,
	}).Debug("Create order response")
	return &result, nil
}

// Orders is the chef feed.
func (c *Client) Orders(ctx context.Context) ([]models.OrderSummary, error) {
	return c.feed(ctx, "/api/orders/", nil)
}

// CourierOrders is the courier feed.
func (c *Client) CourierOrders(ctx context.Context, code string) ([]models.OrderSummary, error) {
	return c.feed(ctx, "/api/courier/", map[string]string{"code": code})
}

func (c *Client) feed(ctx context.Context, path string, query map[string]string) ([]models.OrderSummary, error) {
	var result models.OrdersResponse
	req := c.http.R().SetContext(ctx).SetResult(&result)
	if query != nil {
		req.SetQueryParams(query)
	}

	resp, err := req.Get(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.IsError() {
		return nil, &ServerError{Message: fmt.Sprintf("feed returned status %d", resp.StatusCode())}
	}
	return result.Orders, nil
}

func (c *Client) UpdateStatus(ctx context.Context, req models.UpdateStatusRequest) error {
	var status models.StatusResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&status).
		SetError(&status).
		Post("/api/update/")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if !status.Success {
		return &ServerError{Message: status.Error}
	}
	return nil
}

func (c *Client) CancelOrder(ctx context.Context, secretCode string) error {
	var status models.StatusResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(models.CancelOrderRequest{SecretCode: secretCode}).
		SetResult(&status).
		SetError(&status).
		Post("/cancel-order/")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if !status.Success {
		return &ServerError{Message: status.Error}
	}
	return nil
}

// OrderBySecret fetches the customer tracking snapshot.
func (c *Client) OrderBySecret(ctx context.Context, secretCode string) (*models.Order, error) {
	var result struct {
		Success bool         `json:"success"`
		Order   models.Order `json:"order"`
		Error   string       `json:"error"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("secret", secretCode).
		SetResult(&result).
		SetError(&result).
		Get("/order-status/")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	if resp.IsError() || !result.Success {
		return nil, &ServerError{Message: result.Error}
	}
	return &result.Order, nil
}

// Stats fetches the owner dashboard.
func (c *Client) Stats(ctx context.Context, ownerToken string) (*models.StatsResponse, error) {
	var result models.StatsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Owner-Token", ownerToken).
		SetResult(&result).
		Get("/api/stats/")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.IsError() {
		return nil, &ServerError{Message: fmt.Sprintf("stats returned status %d", resp.StatusCode())}
	}
	return &result, nil
}
