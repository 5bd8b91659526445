package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/shkarik/ordering/internal/auth"
	"github.com/shkarik/ordering/internal/lifecycle"
	"github.com/shkarik/ordering/internal/metrics"
	"github.com/shkarik/ordering/pkg/models"
)

func (s *Server) CreateOrder(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, "create", createOrderRate, "Слишком много заказов. Подождите минуту.") {
		return
	}

	var req models.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Неверный формат данных")
		return
	}

	order, verr := buildOrder(&req)
	if verr != nil {
		s.respondWithError(w, http.StatusBadRequest, verr.Error())
		return
	}

	if err := s.store.CreateOrder(r.Context(), order); err != nil {
		s.logger.WithError(err).Error("Failed to create order")
		s.respondWithError(w, http.StatusInternalServerError, "Ошибка сервера. Попробуйте позже.")
		return
	}

	metrics.OrdersCreated.Inc()
	s.logger.WithFields(logrus.Fields{
		"public_code":   order.PublicCode,
		"delivery_type": order.DeliveryType,
		"total_price":   order.TotalPrice,
		"items_count":   len(order.Items),
	}).Info("Order created")

	s.respondWithJSON(w, http.StatusOK, models.CreateOrderResponse{
		Success:    true,
		PublicCode: order.PublicCode,
		SecretCode: order.SecretCode,
		TotalPrice: order.TotalPrice,
	})
}

func (s *Server) ChefOrders(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, "feed", feedRate, "Слишком много запросов") {
		return
	}

	session, err := s.session(r)
	if err != nil {
		s.logger.WithError(err).Error("Session lookup failed")
		s.respondWithError(w, http.StatusInternalServerError, "Ошибка сервера")
		return
	}
	if session == nil || session.Role != lifecycle.RoleChef {
		s.respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	orders, err := s.store.ActiveOrders(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to load chef feed")
		s.respondWithError(w, http.StatusInternalServerError, "Ошибка сервера")
		return
	}

	feed := make([]models.OrderSummary, 0, len(orders))
	for _, o := range orders {
		feed = append(feed, models.OrderSummary{
			PublicCode:    o.PublicCode,
			ClientName:    o.ClientName,
			DeliveryType:  o.DeliveryType,
			ScheduledTime: o.ScheduledTime,
			Comment:       o.Comment,
			Items:         o.Items,
			TotalPrice:    o.TotalPrice,
			Status:        o.Status,
		})
	}

	s.respondWithJSON(w, http.StatusOK, models.OrdersResponse{Orders: feed})
}

func (s *Server) CourierOrders(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, "feed", feedRate, "Слишком много запросов") {
		return
	}

	code := r.URL.Query().Get("code")
	if !s.sessions.Credentials().ValidCourier(code) {
		s.respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	orders, err := s.store.CourierOrders(r.Context(), code)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load courier feed")
		s.respondWithError(w, http.StatusInternalServerError, "Ошибка сервера")
		return
	}

	feed := make([]models.OrderSummary, 0, len(orders))
	for _, o := range orders {
		feed = append(feed, models.OrderSummary{
			PublicCode:    o.PublicCode,
			ClientName:    o.ClientName,
			ClientPhone:   o.ClientPhone,
			DeliveryType:  o.DeliveryType,
			Address:       o.Address,
			ScheduledTime: o.ScheduledTime,
			Comment:       o.Comment,
			TotalPrice:    o.TotalPrice,
			Status:        o.Status,
		})
	}

	s.respondWithJSON(w, http.StatusOK, models.OrdersResponse{Orders: feed})
}

func (s *Server) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, "update", updateStatusRate, "Слишком много запросов") {
		return
	}

	session, err := s.session(r)
	if err != nil {
		s.logger.WithError(err).Error("Session lookup failed")
		s.respondWithError(w, http.StatusInternalServerError, "Ошибка сервера")
		return
	}

	var role lifecycle.Role
	var courierCode string
	switch {
	case session != nil && session.Role == lifecycle.RoleChef:
		role = lifecycle.RoleChef
	case session != nil && session.Role == lifecycle.RoleCourier:
		role = lifecycle.RoleCourier
		courierCode = session.Code
	case s.isOwner(r):
		role = lifecycle.RoleOwner
	default:
		s.respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req models.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Неверный формат")
		return
	}
	if !req.Status.Valid() {
		s.respondWithError(w, http.StatusBadRequest, "Неверный статус")
		return
	}

	acceptedBy := req.AcceptedBy
	if req.Status == models.StatusDelivering {
		if acceptedBy == "" {
			acceptedBy = courierCode
		}
		if !s.sessions.Credentials().ValidCourier(acceptedBy) {
			s.respondWithError(w, http.StatusBadRequest, "Курьер не найден")
			return
		}
	}

	err = s.machine.Transition(r.Context(), role, req.PublicCode, req.Status, acceptedBy)
	switch {
	case err == nil:
		s.respondWithJSON(w, http.StatusOK, models.StatusResponse{Success: true})
	case errors.Is(err, lifecycle.ErrOrderNotFound):
		s.respondWithError(w, http.StatusNotFound, "Заказ не найден")
	case errors.Is(err, lifecycle.ErrUnauthorizedRole):
		s.respondWithError(w, http.StatusForbidden, "Недостаточно прав")
	case errors.Is(err, lifecycle.ErrIllegalTransition):
		s.respondWithError(w, http.StatusConflict, "Недопустимый переход статуса")
	case errors.Is(err, lifecycle.ErrCourierRequired):
		s.respondWithError(w, http.StatusBadRequest, "Курьер не найден")
	default:
		s.logger.WithError(err).Error("Failed to update status")
		s.respondWithError(w, http.StatusInternalServerError, "Ошибка сервера")
	}
}

func (s *Server) CancelOrder(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, "update", updateStatusRate, "Слишком много запросов") {
		return
	}

	var req models.CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Неверный формат")
		return
	}

	err := s.machine.CancelBySecret(r.Context(), req.SecretCode)
	switch {
	case err == nil:
		s.respondWithJSON(w, http.StatusOK, models.StatusResponse{Success: true})
	case errors.Is(err, lifecycle.ErrOrderNotFound):
		s.respondWithError(w, http.StatusNotFound, "Заказ не найден")
	case errors.Is(err, lifecycle.ErrIllegalTransition):
		s.respondWithError(w, http.StatusConflict, "Заказ уже готовится и не может быть отменён")
	default:
		s.logger.WithError(err).Error("Failed to cancel order")
		s.respondWithError(w, http.StatusInternalServerError, "Ошибка сервера")
	}
}

// OrderStatus is the customer tracking view: a snapshot keyed by the secret
// code handed out at creation.
func (s *Server) OrderStatus(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, "feed", feedRate, "Слишком много запросов") {
		return
	}

	secret := r.URL.Query().Get("secret")
	if secret == "" || len(secret) > 100 {
		s.respondWithError(w, http.StatusBadRequest, "Неверная ссылка")
		return
	}

	order, err := s.store.OrderBySecretCode(r.Context(), secret)
	if errors.Is(err, lifecycle.ErrOrderNotFound) {
		s.respondWithError(w, http.StatusNotFound, "Заказ не найден")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to load order by secret")
		s.respondWithError(w, http.StatusInternalServerError, "Ошибка сервера")
		return
	}

	order.SecretCode = ""
	order.AcceptedBy = ""
	s.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"order":   order,
	})
}

func (s *Server) OwnerStats(w http.ResponseWriter, r *http.Request) {
	if !s.isOwner(r) {
		s.respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if s.stats == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "Статистика недоступна")
		return
	}

	dashboard, err := s.stats.Dashboard(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to compute dashboard")
		s.respondWithError(w, http.StatusInternalServerError, "Ошибка сервера")
		return
	}
	s.respondWithJSON(w, http.StatusOK, dashboard)
}

func (s *Server) loginHandler(role lifecycle.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondWithError(w, http.StatusBadRequest, "Неверный формат")
			return
		}
		if len(req.Code) > 50 {
			s.respondWithError(w, http.StatusUnauthorized, "Неверный код доступа")
			return
		}

		token, err := s.sessions.Login(r.Context(), role, req.Code)
		if errors.Is(err, auth.ErrInvalidCode) {
			s.respondWithError(w, http.StatusUnauthorized, "Неверный код доступа")
			return
		}
		if err != nil {
			s.logger.WithError(err).Error("Login failed")
			s.respondWithError(w, http.StatusInternalServerError, "Ошибка сервера")
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     auth.SessionCookie,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
		})
		s.respondWithJSON(w, http.StatusOK, models.StatusResponse{Success: true})
	}
}

func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.SessionCookie); err == nil {
		if err := s.sessions.Logout(r.Context(), cookie.Value); err != nil {
			s.logger.WithError(err).Warn("Failed to drop session")
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:   auth.SessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	s.respondWithJSON(w, http.StatusOK, models.StatusResponse{Success: true})
}
