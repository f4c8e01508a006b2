package ordering

import "github.com/Totarae/LinkLauncher/internal/model"

// NextPosition позиция для новой ссылки: на единицу больше максимальной.
// При плотном порядке совпадает с количеством ссылок.
func NextPosition(links []model.Link) int {
	next := 0
	for _, l := range links {
		if l.PositionOrder >= next {
			next = l.PositionOrder + 1
		}
	}
	return next
}

// IsDense сообщает, образуют ли позиции последовательность 0..n-1.
func IsDense(links []model.Link) bool {
	seen := make([]bool, len(links))
	for _, l := range links {
		p := l.PositionOrder
		if p < 0 || p >= len(links) || seen[p] {
			return false
		}
		seen[p] = true
	}
	return true
}

// MoveOrders вычисляет изменения позиций при перемещении linkID на
// позицию position в упорядоченном наборе links. Результат плотный;
// в него входят только ссылки, чья позиция меняется.
func MoveOrders(links []model.Link, linkID int64, position int) []model.LinkOrder {
	rest := make([]model.Link, 0, len(links))
	var moved *model.Link
	for i := range links {
		if links[i].ID == linkID {
			moved = &links[i]
			continue
		}
		rest = append(rest, links[i])
	}
	if moved == nil {
		return nil
	}
	if position < 0 {
		position = 0
	}
	if position > len(rest) {
		position = len(rest)
	}

	ordered := make([]model.Link, 0, len(links))
	ordered = append(ordered, rest[:position]...)
	ordered = append(ordered, *moved)
	ordered = append(ordered, rest[position:]...)

	var orders []model.LinkOrder
	for i, l := range ordered {
		if l.PositionOrder != i {
			orders = append(orders, model.LinkOrder{ID: l.ID, PositionOrder: i})
		}
	}
	return orders
}
