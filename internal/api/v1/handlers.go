package apiv1

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/AutoClub/app/models"
	"github.com/ManuelReschke/AutoClub/app/repository"
	"github.com/ManuelReschke/AutoClub/internal/pkg/billing"
	"github.com/ManuelReschke/AutoClub/internal/pkg/config"
	"github.com/ManuelReschke/AutoClub/internal/pkg/scope"
	"github.com/ManuelReschke/AutoClub/internal/pkg/storeerr"
	"github.com/ManuelReschke/AutoClub/internal/pkg/warranty"
)

// APIServer implements the ServerInterface. Every handler runs inside the
// request scope installed by the router.
type APIServer struct {
	app     config.AppConfig
	billing *billing.Service
}

// NewAPIServer creates a new API server instance
func NewAPIServer(app config.AppConfig) *APIServer {
	return &APIServer{app: app, billing: billing.NewService()}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// GetConfig describes the request as the server saw it and how many users
// the store holds. Environment values are never included.
func (s *APIServer) GetConfig(c *fiber.Ctx) error {
	ctx := c.UserContext()
	logger := scope.Logger(ctx)
	logger.Info().Msg("displaying computed configuration")

	users, err := repository.For[models.User](ctx)
	if err != nil {
		return err
	}
	count, err := users.Count()
	if err != nil {
		return err
	}
	logger.Debug().Int64("users", count).Msg("user count")

	requestID, _ := scope.CorrelationID(ctx)
	return c.JSON(fiber.Map{
		"request": fiber.Map{
			"id":     requestID,
			"method": c.Method(),
			"url":    c.OriginalURL(),
			"query":  c.Queries(),
		},
		"app": fiber.Map{
			"env": s.app.Env,
		},
		"users": count,
	})
}

// GetUser returns a user by id.
func (s *APIServer) GetUser(c *fiber.Ctx, id string) error {
	repos, err := repository.FromContext(c.UserContext())
	if err != nil {
		return err
	}
	user, err := repos.Users.FindByID(id)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// GetUserContracts lists the service contracts of a user.
func (s *APIServer) GetUserContracts(c *fiber.Ctx, id string) error {
	repos, err := repository.FromContext(c.UserContext())
	if err != nil {
		return err
	}
	if _, err := repos.Users.FindByID(id); err != nil {
		return err
	}
	contracts, err := repos.Contracts.ForUser(id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"contracts": contracts, "count": len(contracts)})
}

// CreateUserContract writes an open service contract for one of the user's
// vehicles. The request scope flushes it once the handler succeeds.
func (s *APIServer) CreateUserContract(c *fiber.Ctx, id string) error {
	var req CreateContractRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	repos, err := repository.FromContext(c.UserContext())
	if err != nil {
		return err
	}

	user, err := repos.Users.FindByID(id)
	if err != nil {
		return err
	}
	vehicle, err := repos.Vehicles.FindByID(req.VehicleOwnedID)
	if err != nil {
		return reference(err, "vehicle_owned_id")
	}
	rate, err := repos.Rates.FindByID(req.VscRateID)
	if err != nil {
		return reference(err, "vsc_rate_id")
	}

	opts := []warranty.Option{warranty.InWarranty(req.InWarranty)}
	if req.ValuationID != "" {
		valuation, err := repos.Valuations.FindByID(req.ValuationID)
		if err != nil {
			return reference(err, "valuation_id")
		}
		if valuation.VehicleOwnedID != vehicle.ID {
			return storeerr.Violation(models.VscContract{}.TableName(), "valuation_id", storeerr.Check,
				errors.New("valuation belongs to another vehicle"))
		}
		opts = append(opts, warranty.WithValuation(valuation))
	}

	contract, err := warranty.NewContract(user, vehicle, rate, models.Deductible(req.Deductible), opts...)
	if err != nil {
		return err
	}
	if err := repos.Contracts.Create(contract); err != nil {
		return err
	}
	scope.Logger(c.UserContext()).Info().Str("contract_id", contract.ID).Str("user_id", user.ID).Msg("contract created")
	return c.Status(fiber.StatusCreated).JSON(contract)
}

// UpdateContractStatus moves a contract forward in its lifecycle.
func (s *APIServer) UpdateContractStatus(c *fiber.Ctx, id string) error {
	var req ContractStatusRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	repos, err := repository.FromContext(c.UserContext())
	if err != nil {
		return err
	}

	contract, err := repos.Contracts.FindByID(id)
	if err != nil {
		return err
	}
	if err := warranty.Advance(contract, models.ContractStatus(req.Status)); err != nil {
		return err
	}
	if err := repos.Contracts.Update(contract); err != nil {
		return err
	}
	return c.JSON(contract)
}

// LinkBillingCustomer attaches a billing provider customer to a membership.
func (s *APIServer) LinkBillingCustomer(c *fiber.Ctx, id string) error {
	var req BillingCustomerRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	membership, err := s.billing.Link(c.UserContext(), id, req.BillingCustomerID)
	if err != nil {
		return err
	}
	return c.JSON(membership)
}

// ApplySubscription mirrors a provider subscription onto the membership of
// its billing customer.
func (s *APIServer) ApplySubscription(c *fiber.Ctx) error {
	var req SubscriptionRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	membership, err := s.billing.Apply(c.UserContext(), billing.NormalizedSubscription{
		BillingCustomerID:  req.BillingCustomerID,
		Plan:               req.Plan,
		Status:             req.Status,
		CurrentPeriodStart: req.CurrentPeriodStart,
		CurrentPeriodEnd:   req.CurrentPeriodEnd,
		CancelAt:           req.CancelAt,
	})
	if err != nil {
		return err
	}
	return c.JSON(membership)
}

// reference reports a missing referenced row as a foreign key violation on
// field rather than as the request target being absent.
func reference(err error, field string) error {
	if errors.Is(err, storeerr.ErrNotFound) {
		return storeerr.Violation(models.VscContract{}.TableName(), field, storeerr.ForeignKey, err)
	}
	return err
}
