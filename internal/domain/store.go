package domain

import (
	"strings"
	"time"
)

// Store — арендатор (tenant): независимое пространство каталога и корзин
// в рамках одного развёртывания.
type Store struct {
	ID   string
	Name string
	// Hosts — хосты, по которым магазин узнаётся во входящем запросе.
	Hosts  []string
	Active bool
	// WholesaleEnabled — продаёт ли магазин оптом; при false оптовый
	// класс цен разрешается как розничный.
	WholesaleEnabled bool
	// WholesaleDiscountBP — глобальная оптовая скидка в базисных пунктах
	// (15% = 1500). Применяется, когда нет явной оптовой цены.
	WholesaleDiscountBP int64
	// Currency — код валюты ISO 4217; все цены хранятся в минорных единицах.
	Currency  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MatchesHost проверяет, зарегистрирован ли нормализованный хост за магазином.
func (s *Store) MatchesHost(host string) bool {
	host = NormalizeHost(host)
	if host == "" {
		return false
	}
	for _, h := range s.Hosts {
		if NormalizeHost(h) == host {
			return true
		}
	}
	return false
}

// NormalizeHost приводит хост к каноническому виду: нижний регистр, без порта.
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if idx := strings.IndexByte(host, ':'); idx >= 0 {
		host = host[:idx]
	}
	return host
}
