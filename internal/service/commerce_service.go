package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// CommerceService provisions discounts in the external commerce platform.
type CommerceService interface {
	FindOrCreateCustomer(ctx context.Context, email, firstName string) (customerID string, err error)
	CreatePercentageDiscount(ctx context.Context, title string, percentOff int) (ruleID string, err error)
	AttachCode(ctx context.Context, ruleID, code string) error

	// ProvisionDiscount runs the full sequence: find-or-create the customer,
	// create a dedicated percentage-off price rule, attach the redeemable
	// code to it. Returns the commerce customer id.
	ProvisionDiscount(ctx context.Context, email, firstName, code string, percentOff int) (customerID string, err error)
}

// NoopCommerceService is used when the commerce platform is disabled (local runs).
type NoopCommerceService struct{}

func (s *NoopCommerceService) FindOrCreateCustomer(ctx context.Context, email, firstName string) (string, error) {
	return "noop-customer", nil
}

func (s *NoopCommerceService) CreatePercentageDiscount(ctx context.Context, title string, percentOff int) (string, error) {
	return "noop-rule", nil
}

func (s *NoopCommerceService) AttachCode(ctx context.Context, ruleID, code string) error {
	return nil
}

func (s *NoopCommerceService) ProvisionDiscount(ctx context.Context, email, firstName, code string, percentOff int) (string, error) {
	log.Printf("[CommerceService] noop provision discount email=%s code=%s percent=%d", email, code, percentOff)
	return "noop-customer", nil
}

// ShopifyCommerceService talks to the Shopify Admin REST API.
type ShopifyCommerceService struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

func NewShopifyCommerceService(shopDomain, accessToken, apiVersion string) (*ShopifyCommerceService, error) {
	if shopDomain == "" {
		return nil, fmt.Errorf("shopify shop domain is required")
	}
	if accessToken == "" {
		return nil, fmt.Errorf("shopify access token is required")
	}
	if apiVersion == "" {
		apiVersion = "2024-01"
	}
	return &ShopifyCommerceService{
		baseURL:     fmt.Sprintf("https://%s/admin/api/%s", shopDomain, apiVersion),
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type shopifyCustomer struct {
	ID        int64  `json:"id,omitempty"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	Tags      string `json:"tags,omitempty"`
}

type shopifyPriceRule struct {
	ID                int64   `json:"id,omitempty"`
	Title             string  `json:"title,omitempty"`
	TargetType        string  `json:"target_type,omitempty"`
	TargetSelection   string  `json:"target_selection,omitempty"`
	AllocationMethod  string  `json:"allocation_method,omitempty"`
	ValueType         string  `json:"value_type,omitempty"`
	Value             string  `json:"value,omitempty"`
	CustomerSelection string  `json:"customer_selection,omitempty"`
	UsageLimit        int     `json:"usage_limit,omitempty"`
	OncePerCustomer   bool    `json:"once_per_customer,omitempty"`
	StartsAt          string  `json:"starts_at,omitempty"`
	EndsAt            *string `json:"ends_at,omitempty"`
}

type shopifyDiscountCode struct {
	ID   int64  `json:"id,omitempty"`
	Code string `json:"code,omitempty"`
}

func (s *ShopifyCommerceService) FindOrCreateCustomer(ctx context.Context, email, firstName string) (string, error) {
	query := url.Values{}
	query.Set("query", "email:"+email)

	var searchResp struct {
		Customers []shopifyCustomer `json:"customers"`
	}
	if err := s.doJSON(ctx, http.MethodGet, "/customers/search.json?"+query.Encode(), nil, &searchResp); err != nil {
		return "", fmt.Errorf("customer search failed: %w", err)
	}
	for _, c := range searchResp.Customers {
		if c.Email == email {
			return strconv.FormatInt(c.ID, 10), nil
		}
	}

	createReq := map[string]shopifyCustomer{
		"customer": {
			Email:     email,
			FirstName: firstName,
			Tags:      "inner-circle",
		},
	}
	var createResp struct {
		Customer shopifyCustomer `json:"customer"`
	}
	if err := s.doJSON(ctx, http.MethodPost, "/customers.json", createReq, &createResp); err != nil {
		return "", fmt.Errorf("customer create failed: %w", err)
	}
	return strconv.FormatInt(createResp.Customer.ID, 10), nil
}

func (s *ShopifyCommerceService) CreatePercentageDiscount(ctx context.Context, title string, percentOff int) (string, error) {
	req := map[string]shopifyPriceRule{
		"price_rule": {
			Title:             title,
			TargetType:        "line_item",
			TargetSelection:   "all",
			AllocationMethod:  "across",
			ValueType:         "percentage",
			Value:             fmt.Sprintf("-%d.0", percentOff),
			CustomerSelection: "all",
			UsageLimit:        1,
			OncePerCustomer:   true,
			StartsAt:          time.Now().UTC().Format(time.RFC3339),
		},
	}
	var resp struct {
		PriceRule shopifyPriceRule `json:"price_rule"`
	}
	if err := s.doJSON(ctx, http.MethodPost, "/price_rules.json", req, &resp); err != nil {
		return "", fmt.Errorf("price rule create failed: %w", err)
	}
	return strconv.FormatInt(resp.PriceRule.ID, 10), nil
}

func (s *ShopifyCommerceService) AttachCode(ctx context.Context, ruleID, code string) error {
	req := map[string]shopifyDiscountCode{
		"discount_code": {Code: code},
	}
	var resp struct {
		DiscountCode shopifyDiscountCode `json:"discount_code"`
	}
	path := fmt.Sprintf("/price_rules/%s/discount_codes.json", ruleID)
	if err := s.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return fmt.Errorf("discount code create failed: %w", err)
	}
	return nil
}

func (s *ShopifyCommerceService) ProvisionDiscount(ctx context.Context, email, firstName, code string, percentOff int) (string, error) {
	customerID, err := s.FindOrCreateCustomer(ctx, email, firstName)
	if err != nil {
		return "", err
	}

	title := fmt.Sprintf("Inner Circle %d%% — %s", percentOff, code)
	ruleID, err := s.CreatePercentageDiscount(ctx, title, percentOff)
	if err != nil {
		return "", err
	}

	if err := s.AttachCode(ctx, ruleID, code); err != nil {
		return "", err
	}
	return customerID, nil
}

func (s *ShopifyCommerceService) doJSON(ctx context.Context, method, path string, body, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-Shopify-Access-Token", s.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("shopify API returned %d: %s", resp.StatusCode, string(detail))
	}

	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// SetBaseURL overrides the API base URL. Used in tests.
func (s *ShopifyCommerceService) SetBaseURL(baseURL string) {
	s.baseURL = baseURL
}
