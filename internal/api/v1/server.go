package apiv1

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pong is the body of GET /ping.
type Pong struct {
	Ping string `json:"ping"`
}

// CreateContractRequest is the body of POST /users/{id}/contracts.
type CreateContractRequest struct {
	VehicleOwnedID string `json:"vehicle_owned_id"`
	VscRateID      string `json:"vsc_rate_id"`
	Deductible     int    `json:"deductible"`
	ValuationID    string `json:"valuation_id,omitempty"`
	InWarranty     bool   `json:"in_warranty"`
}

// ContractStatusRequest is the body of PUT /contracts/{id}/status.
type ContractStatusRequest struct {
	Status string `json:"status"`
}

// BillingCustomerRequest is the body of PUT /memberships/{id}/billing-customer.
type BillingCustomerRequest struct {
	BillingCustomerID string `json:"billing_customer_id"`
}

// SubscriptionRequest is the body of POST /billing/subscriptions.
type SubscriptionRequest struct {
	BillingCustomerID  string     `json:"billing_customer_id"`
	Plan               string     `json:"plan"`
	Status             string     `json:"status"`
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	CancelAt           *time.Time `json:"cancel_at,omitempty"`
}

// ServerInterface lists the v1 operations.
type ServerInterface interface {
	// (GET /ping)
	GetPing(c *fiber.Ctx) error
	// (GET /config)
	GetConfig(c *fiber.Ctx) error
	// (GET /users/{id})
	GetUser(c *fiber.Ctx, id string) error
	// (GET /users/{id}/contracts)
	GetUserContracts(c *fiber.Ctx, id string) error
	// (POST /users/{id}/contracts)
	CreateUserContract(c *fiber.Ctx, id string) error
	// (PUT /contracts/{id}/status)
	UpdateContractStatus(c *fiber.Ctx, id string) error
	// (PUT /memberships/{id}/billing-customer)
	LinkBillingCustomer(c *fiber.Ctx, id string) error
	// (POST /billing/subscriptions)
	ApplySubscription(c *fiber.Ctx) error
}

// ServerInterfaceWrapper extracts path parameters before calling the handler.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

func (w *ServerInterfaceWrapper) GetPing(c *fiber.Ctx) error {
	return w.Handler.GetPing(c)
}

func (w *ServerInterfaceWrapper) GetConfig(c *fiber.Ctx) error {
	return w.Handler.GetConfig(c)
}

func (w *ServerInterfaceWrapper) GetUser(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	return w.Handler.GetUser(c, id)
}

func (w *ServerInterfaceWrapper) GetUserContracts(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	return w.Handler.GetUserContracts(c, id)
}

func (w *ServerInterfaceWrapper) CreateUserContract(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	return w.Handler.CreateUserContract(c, id)
}

func (w *ServerInterfaceWrapper) UpdateContractStatus(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	return w.Handler.UpdateContractStatus(c, id)
}

func (w *ServerInterfaceWrapper) LinkBillingCustomer(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	return w.Handler.LinkBillingCustomer(c, id)
}

func (w *ServerInterfaceWrapper) ApplySubscription(c *fiber.Ctx) error {
	return w.Handler.ApplySubscription(c)
}

func idParam(c *fiber.Ctx) (string, error) {
	id := c.Params("id")
	if id == "" || len(id) > 36 {
		return "", fiber.NewError(fiber.StatusBadRequest, "Invalid format for parameter id")
	}
	return id, nil
}

// RegisterHandlers mounts the v1 operations on router.
func RegisterHandlers(router fiber.Router, si ServerInterface) {
	wrapper := ServerInterfaceWrapper{Handler: si}

	router.Get("/ping", wrapper.GetPing)
	router.Get("/config", wrapper.GetConfig)
	router.Get("/users/:id", wrapper.GetUser)
	router.Get("/users/:id/contracts", wrapper.GetUserContracts)
	router.Post("/users/:id/contracts", wrapper.CreateUserContract)
	router.Put("/contracts/:id/status", wrapper.UpdateContractStatus)
	router.Put("/memberships/:id/billing-customer", wrapper.LinkBillingCustomer)
	router.Post("/billing/subscriptions", wrapper.ApplySubscription)
}

func bindBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	return nil
}
