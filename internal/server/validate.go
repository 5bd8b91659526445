package server

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shkarik/ordering/pkg/models"
)

var namePattern = regexp.MustCompile(`^[а-яА-ЯёЁa-zA-Z\s]+$`)

// buildOrder validates a creation request the way the storefront promises and
// returns the order with the server-side recomputed total. Client-supplied
// totals are never trusted.
func buildOrder(req *models.CreateOrderRequest) (*models.Order, error) {
	name := strings.TrimSpace(req.ClientName)
	if name == "" {
		return nil, errors.New("Введите ваше имя")
	}
	if utf8.RuneCountInString(name) > 100 {
		return nil, errors.New("Имя слишком длинное")
	}
	if !namePattern.MatchString(name) {
		return nil, errors.New("Имя должно содержать только буквы")
	}

	if strings.TrimSpace(req.ClientPhone) == "" {
		return nil, errors.New("Введите номер телефона")
	}
	phone, ok := models.NormalizePhone(req.ClientPhone)
	if !ok {
		return nil, errors.New("Неверный формат телефона. Пример: +996 700 123 456")
	}

	if req.DeliveryType != models.DeliveryPickup && req.DeliveryType != models.DeliveryDelivery {
		return nil, errors.New("Неверный тип доставки")
	}

	address := strings.TrimSpace(req.Address)
	if req.DeliveryType == models.DeliveryDelivery {
		if address == "" {
			return nil, errors.New("Укажите адрес доставки")
		}
		if utf8.RuneCountInString(address) > 500 {
			return nil, errors.New("Адрес слишком длинный")
		}
	}

	if len(req.Cart) == 0 {
		return nil, errors.New("Корзина пуста")
	}
	if len(req.Cart) > models.MaxCartLines {
		return nil, errors.New("Слишком много товаров в заказе")
	}

	items := make([]models.OrderItem, 0, len(req.Cart))
	total := 0
	for _, line := range req.Cart {
		if strings.TrimSpace(line.Name) == "" {
			return nil, errors.New("Неполные данные товара")
		}
		if line.Price < 0 || line.Price > models.MaxItemPrice {
			return nil, errors.New("Подозрительная цена товара")
		}
		if line.Quantity < 1 || line.Quantity > models.MaxItemQty {
			return nil, errors.New("Неверное количество товара")
		}

		itemName := line.Name
		if utf8.RuneCountInString(itemName) > 200 {
			itemName = string([]rune(itemName)[:200])
		}
		items = append(items, models.OrderItem{Name: itemName, Price: line.Price, Quantity: line.Quantity})
		total += line.Price * line.Quantity
	}

	comment := strings.TrimSpace(req.Comment)
	if utf8.RuneCountInString(comment) > 1000 {
		return nil, errors.New("Комментарий слишком длинный")
	}

	scheduled := strings.TrimSpace(req.ScheduledTime)
	if utf8.RuneCountInString(scheduled) > 50 {
		return nil, errors.New("Неверное время")
	}

	if req.DeliveryType == models.DeliveryDelivery {
		total += models.DeliveryFee
	}
	if total > models.MaxOrderTotal {
		return nil, errors.New("Слишком большая сумма заказа. Свяжитесь с нами по телефону.")
	}

	return &models.Order{
		ClientName:    name,
		ClientPhone:   phone,
		DeliveryType:  req.DeliveryType,
		Address:       address,
		ScheduledTime: scheduled,
		Comment:       comment,
		Items:         items,
		TotalPrice:    total,
		Status:        models.StatusNew,
	}, nil
}
