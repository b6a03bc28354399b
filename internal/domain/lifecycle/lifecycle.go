// Пакет lifecycle — конечный автомат жизненного цикла медиафайла.
//
// Жизненный цикл записи:
//   - pending — запись создана, наличие байтов в хранилище не гарантировано
//   - confirmed — байты проверены в хранилище, размер и метаданные заполнены
//   - deleted — мягкое удаление, запись скрыта из выдачи
//
// Purge (жёсткое удаление) — не статус, а удаление записи вместе с объектом
// хранилища. Допускается из любого статуса: pending → purge выполняет sweeper
// для брошенных загрузок.
//
// Автомат не хранит состояние: статус каждой записи живёт в PostgreSQL,
// сериализация конкурентных переходов — условные UPDATE по текущему статусу.
// Здесь только матрицы допустимости и их проверки.
package lifecycle

import "fmt"

// Status — статус жизненного цикла медиафайла.
type Status string

const (
	// StatusPending — запись создана, байты ещё не подтверждены
	StatusPending Status = "pending"
	// StatusConfirmed — байты проверены в хранилище
	StatusConfirmed Status = "confirmed"
	// StatusDeleted — мягкое удаление
	StatusDeleted Status = "deleted"
)

// Operation — операция над медиафайлом.
type Operation string

const (
	OpConfirm    Operation = "confirm"
	OpStream     Operation = "stream"
	OpDownload   Operation = "download"
	OpUpdate     Operation = "update"
	OpSoftDelete Operation = "soft_delete"
	OpPurge      Operation = "purge"
)

// validTransitions — матрица допустимых переходов между статусами.
// Ключ — текущий статус, значение — набор допустимых целевых статусов.
var validTransitions = map[Status]map[Status]bool{
	StatusPending:   {StatusConfirmed: true, StatusDeleted: true},
	StatusConfirmed: {StatusDeleted: true},
	StatusDeleted:   {}, // Конечный статус — дальше только purge
}

// allowedOperations — матрица допустимых операций для каждого статуса.
// Раздача (stream/download) доступна только подтверждённым файлам.
var allowedOperations = map[Status]map[Operation]bool{
	StatusPending:   {OpConfirm: true, OpUpdate: true, OpSoftDelete: true, OpPurge: true},
	StatusConfirmed: {OpStream: true, OpDownload: true, OpUpdate: true, OpSoftDelete: true, OpPurge: true},
	StatusDeleted:   {OpPurge: true},
}

// CanTransition проверяет, допустим ли переход from → to.
func CanTransition(from, to Status) bool {
	transitions, ok := validTransitions[from]
	if !ok {
		return false
	}
	return transitions[to]
}

// Transition валидирует переход from → to.
// Возвращает *TransitionError для недопустимых переходов.
func Transition(from, to Status) error {
	if !isValidStatus(to) {
		return &TransitionError{
			From:    from,
			To:      to,
			Message: fmt.Sprintf("недопустимый целевой статус: %q", to),
		}
	}

	if !CanTransition(from, to) {
		return &TransitionError{
			From:    from,
			To:      to,
			Message: fmt.Sprintf("переход %s → %s недопустим", from, to),
		}
	}

	return nil
}

// CanPerform проверяет, допустима ли операция для записи в данном статусе.
func CanPerform(s Status, op Operation) bool {
	ops, ok := allowedOperations[s]
	if !ok {
		return false
	}
	return ops[op]
}

// AllowedOperations возвращает список операций, доступных в данном статусе.
func AllowedOperations(s Status) []Operation {
	ops, ok := allowedOperations[s]
	if !ok {
		return nil
	}

	result := make([]Operation, 0, len(ops))
	for op := range ops {
		result = append(result, op)
	}
	return result
}

// TransitionError — ошибка недопустимого перехода между статусами.
type TransitionError struct {
	From    Status
	To      Status
	Message string
}

func (e *TransitionError) Error() string {
	return e.Message
}

// isValidStatus проверяет, является ли строка допустимым статусом.
func isValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusDeleted:
		return true
	default:
		return false
	}
}

// ParseStatus преобразует строку в Status.
// Возвращает ошибку для недопустимых значений.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !isValidStatus(st) {
		return "", fmt.Errorf("недопустимый статус: %q, допустимые: pending, confirmed, deleted", s)
	}
	return st, nil
}
