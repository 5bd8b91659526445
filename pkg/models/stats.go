package models

type DaySales struct {
	Date  string `json:"date"`
	Total int    `json:"total"`
}

type DishStat struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Revenue  int    `json:"revenue"`
}

type TimeSlotStat struct {
	Slot    string `json:"slot"`
	Count   int    `json:"count"`
	Percent int    `json:"percent"`
}

type CourierStat struct {
	Code       string `json:"code"`
	Deliveries int    `json:"deliveries"`
	Active     bool   `json:"active"`
}

type StatsResponse struct {
	RevenueToday int `json:"revenue_today"`
	RevenueWeek  int `json:"revenue_week"`
	RevenueMonth int `json:"revenue_month"`

	OrdersToday int `json:"orders_today"`
	OrdersWeek  int `json:"orders_week"`
	OrdersMonth int `json:"orders_month"`

	SalesByDay []DaySales     `json:"sales_by_day"`
	TopDishes  []DishStat     `json:"top_dishes"`
	TimeSlots  []TimeSlotStat `json:"time_slots"`
	Couriers   []CourierStat  `json:"couriers"`
}
