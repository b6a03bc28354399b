// errors.go — ошибки бизнес-логики сервисного слоя.
// Каждый вид ошибки отображается в свой HTTP-статус на уровне handlers.
package service

import "errors"

var (
	// ErrNotFound — файл или атлет не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrValidation — дескриптор или содержимое файла не прошли валидацию.
	ErrValidation = errors.New("ошибка валидации")
	// ErrFileTooLarge — размер файла превышает настроенный лимит.
	ErrFileTooLarge = errors.New("размер файла превышает лимит")
	// ErrUploadNotFound — подтверждение вызвано до фактической загрузки байтов.
	ErrUploadNotFound = errors.New("объект не найден в хранилище — загрузка не завершена")
	// ErrInvalidState — операция недопустима в текущем статусе записи.
	ErrInvalidState = errors.New("операция недопустима в текущем статусе записи")
	// ErrRangeNotSatisfiable — запрошенный диапазон целиком за пределами объекта.
	ErrRangeNotSatisfiable = errors.New("запрошенный диапазон вне размера объекта")
	// ErrStorageUnavailable — объектное хранилище недоступно.
	ErrStorageUnavailable = errors.New("объектное хранилище недоступно")
	// ErrConflict — конкурентное изменение записи, переход состояния проигран.
	ErrConflict = errors.New("конфликт конкурентного изменения")
)
