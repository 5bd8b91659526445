package lifecycle

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/shkarik/ordering/internal/metrics"
	"github.com/shkarik/ordering/pkg/models"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrUnauthorizedRole  = errors.New("role not allowed for transition")
	ErrCourierRequired   = errors.New("courier identity required")
)

type Role string

const (
	RoleChef     Role = "chef"
	RoleCourier  Role = "courier"
	RoleOwner    Role = "owner"
	RoleCustomer Role = "customer"
)

// Store is the order store as seen by the machine. UpdateStatus applies the
// transition only while the order still holds one of the expected statuses
// and reports ErrIllegalTransition otherwise, which makes it the single
// arbiter when two writers race for the same order.
type Store interface {
	OrderByPublicCode(ctx context.Context, publicCode string) (*models.Order, error)
	OrderBySecretCode(ctx context.Context, secretCode string) (*models.Order, error)
	UpdateStatus(ctx context.Context, publicCode string, expect []models.Status, to models.Status, acceptedBy string) error
}

// transitions maps a target status to the statuses it is reachable from and
// the roles allowed to request it from each of them.
var transitions = map[models.Status]map[models.Status][]Role{
	models.StatusCooking: {
		models.StatusNew: {RoleChef},
	},
	models.StatusReady: {
		models.StatusNew:     {RoleChef},
		models.StatusCooking: {RoleChef},
	},
	models.StatusDelivering: {
		models.StatusReady: {RoleCourier},
	},
	models.StatusCompleted: {
		models.StatusDelivering: {RoleCourier},
	},
	models.StatusCancelled: {
		models.StatusNew:        {RoleChef, RoleOwner, RoleCustomer},
		models.StatusCooking:    {RoleChef, RoleOwner, RoleCustomer},
		models.StatusReady:      {RoleChef, RoleOwner},
		models.StatusDelivering: {RoleChef, RoleOwner, RoleCourier},
	},
}

// Machine is the sole writer of order status.
type Machine struct {
	store  Store
	logger *logrus.Logger
}

func NewMachine(store Store, logger *logrus.Logger) *Machine {
	return &Machine{store: store, logger: logger}
}

// Transition moves the order identified by publicCode to the target status on
// behalf of role. acceptedBy must carry the courier code on a take and is
// ignored everywhere else. Reachability is checked before the role so that an
// unreachable target fails the same way for every caller.
func (m *Machine) Transition(ctx context.Context, role Role, publicCode string, target models.Status, acceptedBy string) error {
	sources, ok := transitions[target]
	if !ok {
		metrics.RejectedTransitions.WithLabelValues("illegal").Inc()
		return ErrIllegalTransition
	}

	order, err := m.store.OrderByPublicCode(ctx, publicCode)
	if err != nil {
		metrics.RejectedTransitions.WithLabelValues("not_found").Inc()
		return err
	}

	roles, ok := sources[order.Status]
	if !ok {
		metrics.RejectedTransitions.WithLabelValues("illegal").Inc()
		return ErrIllegalTransition
	}
	if !roleAllowed(roles, role) {
		metrics.RejectedTransitions.WithLabelValues("unauthorized").Inc()
		return ErrUnauthorizedRole
	}

	if target == models.StatusDelivering {
		if acceptedBy == "" {
			metrics.RejectedTransitions.WithLabelValues("no_courier").Inc()
			return ErrCourierRequired
		}
	} else {
		acceptedBy = ""
	}

	// Conditional write from the status we just observed. A zero-row update
	// means another writer won the race; the caller should re-poll.
	if err := m.store.UpdateStatus(ctx, publicCode, []models.Status{order.Status}, target, acceptedBy); err != nil {
		if errors.Is(err, ErrIllegalTransition) {
			metrics.RejectedTransitions.WithLabelValues("contested").Inc()
		}
		return err
	}

	metrics.StatusTransitions.WithLabelValues(string(order.Status), string(target), string(role)).Inc()
	m.logger.WithFields(logrus.Fields{
		"public_code": publicCode,
		"from":        order.Status,
		"to":          target,
		"role":        role,
	}).Info("Order status updated")

	return nil
}

// CancelBySecret is the customer cancellation path. It is only open while the
// order has not been marked ready.
func (m *Machine) CancelBySecret(ctx context.Context, secretCode string) error {
	order, err := m.store.OrderBySecretCode(ctx, secretCode)
	if err != nil {
		metrics.RejectedTransitions.WithLabelValues("not_found").Inc()
		return err
	}

	if order.Status != models.StatusNew && order.Status != models.StatusCooking {
		metrics.RejectedTransitions.WithLabelValues("illegal").Inc()
		return ErrIllegalTransition
	}

	if err := m.store.UpdateStatus(ctx, order.PublicCode, []models.Status{models.StatusNew, models.StatusCooking}, models.StatusCancelled, ""); err != nil {
		if errors.Is(err, ErrIllegalTransition) {
			metrics.RejectedTransitions.WithLabelValues("contested").Inc()
		}
		return err
	}

	metrics.StatusTransitions.WithLabelValues(string(order.Status), string(models.StatusCancelled), string(RoleCustomer)).Inc()
	m.logger.WithFields(logrus.Fields{
		"public_code": order.PublicCode,
		"from":        order.Status,
	}).Info("Order cancelled by customer")

	return nil
}

func roleAllowed(roles []Role, role Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
