package model

import "time"

// Athlete — запись атлета (владеющая сущность медиафайлов).
// Обычный CRUD без специальных инвариантов; media-service использует
// её для проверки существования владельца при загрузке.
type Athlete struct {
	// ID — UUID атлета
	ID string
	// Name — полное имя
	Name string
	// Country — страна (опционально)
	Country *string
	// BirthDate — дата рождения (опционально)
	BirthDate *time.Time
	// Height — рост в сантиметрах (опционально)
	Height *float64
	// Weight — вес в килограммах (опционально)
	Weight *float64
	// Sport — вид спорта (опционально)
	Sport *string
	// NickName — прозвище (опционально)
	NickName *string
	// Bio — биография (опционально)
	Bio *string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
	// DeletedAt — отметка мягкого удаления
	DeletedAt *time.Time
}
